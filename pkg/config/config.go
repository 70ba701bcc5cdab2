// Package config holds the tunables of the extraction pipeline and loads
// them from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/digest"
	"github.com/hansbonini/pspredump/pkg/hexdump"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Defaults used when neither a config file nor a flag sets a value.
const (
	DefaultSFOSuffix = ".SFO"
	DefaultPVDOffset = 0x320
	DefaultPVDLength = 0x60
)

// Config is the on-disk configuration format.
type Config struct {
	ChunkSize int           `yaml:"chunk_size"`
	SFOSuffix string        `yaml:"sfo_suffix"`
	PVDOffset int           `yaml:"pvd_offset"`
	PVDLength int           `yaml:"pvd_length"`
	PVDStyle  hexdump.Style `yaml:"pvd_style"`
	Parallel  bool          `yaml:"parallel"`
	Mmap      bool          `yaml:"mmap"`
	Strict    bool          `yaml:"strict"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ChunkSize: digest.DefaultChunkSize,
		SFOSuffix: DefaultSFOSuffix,
		PVDOffset: DefaultPVDOffset,
		PVDLength: DefaultPVDLength,
		PVDStyle:  hexdump.StyleDefault,
	}
}

// Load reads path from fs over the defaults. An empty path returns the
// defaults; a missing file is an error since the caller asked for it.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			common.LogWarn(common.WarnConfigFileAbsent, path)
		}
		return cfg, common.FormatError(common.ErrFailedToLoadConfig, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, common.FormatError(common.ErrFailedToLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with. Every problem found
// is reported, combined into one error.
func (c Config) Validate() error {
	var errs error
	if c.ChunkSize < 1 {
		errs = multierr.Append(errs, fmt.Errorf("chunk_size must be at least 1, got %d", c.ChunkSize))
	}
	if c.SFOSuffix == "" {
		errs = multierr.Append(errs, errors.New("sfo_suffix must not be empty"))
	}
	if c.PVDOffset < 0 || c.PVDLength < 1 || c.PVDOffset+c.PVDLength > common.SectorSize {
		errs = multierr.Append(errs, fmt.Errorf("pvd window 0x%X+0x%X must lie inside a %d-byte sector",
			c.PVDOffset, c.PVDLength, common.SectorSize))
	}
	if !c.PVDStyle.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("pvd_style must be %q or %q, got %q",
			hexdump.StyleDefault, hexdump.StyleIsoBuster, c.PVDStyle))
	}
	if errs != nil {
		return common.FormatError(common.ErrInvalidConfig, errs)
	}
	return nil
}
