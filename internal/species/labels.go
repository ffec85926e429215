// Package species holds the ordered label map shared by the classifier and
// the prediction decoder.
package species

import (
	"bufio"
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/birdsong-go/birdsong/internal/errors"
	"github.com/birdsong-go/birdsong/internal/logger"
)

// UnknownBird is the display name used when a prediction cannot be mapped to a label.
const UnknownBird = "Unknown Bird"

//go:embed labels.csv
var embeddedLabels string

// Label is one (code, display name) pair. Its position in a LabelMap is the
// model output index.
type Label struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// LabelMap is an immutable ordered list of labels with a code index.
type LabelMap struct {
	labels []Label
	byCode map[string]int
}

// NewLabelMap validates labels and builds a LabelMap. Codes must be unique and
// neither code nor name may be empty.
func NewLabelMap(labels []Label) (*LabelMap, error) {
	if len(labels) == 0 {
		return nil, labelError(fmt.Errorf("label list is empty"))
	}

	byCode := make(map[string]int, len(labels))
	for i, l := range labels {
		if l.Code == "" || l.Name == "" {
			return nil, labelError(fmt.Errorf("label %d has empty code or name", i))
		}
		if prev, dup := byCode[l.Code]; dup {
			return nil, labelError(fmt.Errorf("duplicate label code %q at rows %d and %d", l.Code, prev, i))
		}
		byCode[l.Code] = i
	}

	return &LabelMap{labels: slices.Clone(labels), byCode: byCode}, nil
}

// ParseLabels reads "code,name" lines, skipping blank lines and # comments.
func ParseLabels(r io.Reader) (*LabelMap, error) {
	var labels []Label
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		code, name, ok := strings.Cut(line, ",")
		if !ok {
			return nil, labelError(fmt.Errorf("invalid label line %d: %q", lineNo, line))
		}
		labels = append(labels, Label{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	if err := scanner.Err(); err != nil {
		return nil, labelError(fmt.Errorf("error reading labels: %w", err))
	}
	return NewLabelMap(labels)
}

// LoadLabelFile loads a label map from a CSV file on disk.
func LoadLabelFile(path string) (*LabelMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error opening label file: %w", err)).
			Component("species").
			Category(errors.CategoryFileIO).
			FileContext(path, 0).
			Build()
	}
	defer f.Close()

	lm, err := ParseLabels(f)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("loaded label file",
		logger.String("path", path),
		logger.Int("labels", lm.Len()))
	return lm, nil
}

var defaultLabels = sync.OnceValues(func() (*LabelMap, error) {
	return ParseLabels(strings.NewReader(embeddedLabels))
})

// Default returns the embedded 12-species label map.
func Default() *LabelMap {
	lm, err := defaultLabels()
	if err != nil {
		panic(fmt.Sprintf("embedded labels are invalid: %v", err))
	}
	return lm
}

// Load returns the label map at path, or the embedded map when path is empty.
func Load(path string) (*LabelMap, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadLabelFile(path)
}

// Len returns the number of labels, which must equal the model output size.
func (m *LabelMap) Len() int {
	return len(m.labels)
}

// Labels returns a copy of the ordered labels.
func (m *LabelMap) Labels() []Label {
	return slices.Clone(m.labels)
}

// At returns the label at output index i.
func (m *LabelMap) At(i int) (Label, bool) {
	if i < 0 || i >= len(m.labels) {
		return Label{}, false
	}
	return m.labels[i], true
}

// NameOf returns the display name for code, or UnknownBird.
func (m *LabelMap) NameOf(code string) string {
	if i, ok := m.byCode[code]; ok {
		return m.labels[i].Name
	}
	return UnknownBird
}

func labelError(err error) error {
	return errors.New(err).
		Component("species").
		Category(errors.CategoryLabelLoad).
		Build()
}
