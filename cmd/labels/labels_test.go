package labels

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/birdsong-go/birdsong/internal/species"
)

func TestWriteFormats(t *testing.T) {
	t.Parallel()

	lm := species.Default()

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, lm, FormatText))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, lm.Len())
		assert.Contains(t, lines[0], "barswa")
		assert.Contains(t, lines[0], "Barn Swallow")
	})

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, lm, FormatJSON))
		var got []species.Label
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, lm.Labels(), got)
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, lm, FormatYAML))
		var got []species.Label
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, lm.Labels(), got)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()
		require.Error(t, Write(&bytes.Buffer{}, lm, "xml"))
	})
}
