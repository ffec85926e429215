package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdsong-go/birdsong/internal/app"
	"github.com/birdsong-go/birdsong/internal/buildinfo"
)

func TestVersionFlag(t *testing.T) {
	ctx := app.NewContext(buildinfo.NewContext("v1.4.0", "2026-10-01"))
	root := RootCommand(ctx)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "v1.4.0 (2026-10-01)")
}

// Not parallel: Initialize replaces the global logger.
func TestLabelsFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	labelPath := filepath.Join(dir, "labels.csv")
	require.NoError(t, os.WriteFile(labelPath, []byte("wren1,Eurasian Wren\n"), 0o600))
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("classifier:\n  labelpath: /does/not/exist.csv\n"), 0o600))

	ctx := app.NewContext(buildinfo.NewContext("", ""))
	root := RootCommand(ctx)
	t.Cleanup(ctx.Shutdown)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", configPath, "--labels", labelPath, "labels"})
	require.NoError(t, root.Execute())

	assert.Equal(t, labelPath, ctx.Settings.Classifier.LabelPath)
	assert.Contains(t, out.String(), "wren1")
	assert.Contains(t, out.String(), "Eurasian Wren")
}

func TestIdentifyRequiresFile(t *testing.T) {
	ctx := app.NewContext(buildinfo.NewContext("", ""))
	root := RootCommand(ctx)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"identify"})
	require.Error(t, root.Execute())
}
