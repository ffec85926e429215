package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/buildinfo"
	"github.com/birdsong-go/birdsong/internal/conf"
)

func TestInitWritesDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "birdsong", "config.yaml")
	cmd := Command(app.NewContext(buildinfo.NewContext("", "")))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--init=" + path})

	require.NoError(t, cmd.Execute())
	assert.True(t, SkipsInitialize(cmd))
	assert.Contains(t, out.String(), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	embedded, err := conf.DefaultConfigYAML()
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	// refuses to overwrite
	cmd = Command(app.NewContext(buildinfo.NewContext("", "")))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--init=" + path})
	require.Error(t, cmd.Execute())
}

func TestPrintEffectiveSettings(t *testing.T) {
	t.Parallel()

	ctx := app.NewContext(buildinfo.NewContext("", ""))
	settings, err := conf.Load(ctx.Viper, writeConfig(t, "classifier:\n  modelpath: /srv/model.tflite\n"))
	require.NoError(t, err)
	ctx.Settings = settings

	cmd := Command(ctx)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.False(t, SkipsInitialize(cmd))
	assert.Contains(t, out.String(), "modelpath: /srv/model.tflite")
	assert.Contains(t, out.String(), "provider: duckduckgo")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
