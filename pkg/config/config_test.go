package config

import (
	"errors"
	"testing"

	"github.com/hansbonini/pspredump/pkg/hexdump"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0x10000, cfg.ChunkSize)
	assert.Equal(t, ".SFO", cfg.SFOSuffix)
	assert.Equal(t, 0x320, cfg.PVDOffset)
	assert.Equal(t, 0x60, cfg.PVDLength)
	assert.Equal(t, hexdump.StyleDefault, cfg.PVDStyle)
	assert.False(t, cfg.Parallel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/pspredump.yaml", []byte(`
chunk_size: 4096
pvd_style: isobuster
parallel: true
strict: true
`), 0o644))

	cfg, err := Load(fs, "/etc/pspredump.yaml")
	require.NoError(t, err)

	want := Default()
	want.ChunkSize = 4096
	want.PVDStyle = hexdump.StyleIsoBuster
	want.Parallel = true
	want.Strict = true
	assert.Equal(t, want, cfg)
}

func TestLoad_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("chunk_size: [1, 2"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "invalid.yaml", []byte("chunk_size: 0\n"), 0o644))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing file", "nope.yaml", "failed to load configuration"},
		{"malformed yaml", "bad.yaml", "failed to load configuration"},
		{"invalid values", "invalid.yaml", "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(fs, tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"empty suffix", func(c *Config) { c.SFOSuffix = "" }, "sfo_suffix"},
		{"window past sector", func(c *Config) { c.PVDOffset = 0x7F0 }, "pvd window"},
		{"negative offset", func(c *Config) { c.PVDOffset = -1 }, "pvd window"},
		{"empty window", func(c *Config) { c.PVDLength = 0 }, "pvd window"},
		{"unknown style", func(c *Config) { c.PVDStyle = "fancy" }, "pvd_style"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.ChunkSize = 0
	cfg.SFOSuffix = ""
	cfg.PVDStyle = "fancy"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(errors.Unwrap(err)), 3)
	for _, want := range []string{"chunk_size", "sfo_suffix", "pvd_style"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.NotContains(t, err.Error(), "pvd window")
}
