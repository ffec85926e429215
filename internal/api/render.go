package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/birdsong-go/birdsong/internal/logger"
	"github.com/birdsong-go/birdsong/internal/pipeline"
	"github.com/birdsong-go/birdsong/internal/species"
)

//go:embed views/*.html
var viewsFS embed.FS

// Page text.
const (
	PageTitle    = "Birdsong"
	PageSubtitle = "Birdsong recognition"
	UploadPrompt = "Upload an audio file (MP3 or WAV format)"
	IdleNotice   = "Please upload an audio file to get started."
)

// PageData is the view model of the single page.
type PageData struct {
	Title     string
	Subtitle  string
	Prompt    string
	Info      string
	Error     string
	Filename  string
	Result    *pipeline.Result
	AudioURI  template.URL
	ImageURI  template.URL
	Provider  string
	Version   string
	MaxUpload string
}

// Others returns the candidates after the top prediction.
func (d PageData) Others() []species.Prediction {
	if d.Result == nil || len(d.Result.Candidates) < 2 {
		return nil
	}
	return d.Result.Candidates[1:]
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
	log       logger.Logger
}

// Render executes into a buffer first so a failing template never writes a partial page.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		t.log.Error("error executing template",
			logger.String("template", name),
			logger.Error(err))
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func newTemplateRenderer(log logger.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(templateFunctions()).ParseFS(viewsFS, "views/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateRenderer{templates: tmpl, log: log}, nil
}

func templateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":      titleCase,
		"confidence": confidence,
	}
}

// titleCase builds a Caser per call since a Caser is stateful and requests
// render concurrently.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// confidence formats a score as a percentage.
func confidence(v float32) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
