package cmd

import (
	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/config"
	"github.com/hansbonini/pspredump/pkg/source"
)

// openImage opens path on appFs, or memory-maps it from the OS filesystem
// when cfg.Mmap is set.
func openImage(path string, cfg config.Config) (source.Handle, error) {
	var (
		h   source.Handle
		err error
	)
	if cfg.Mmap {
		h, err = source.OpenMapped(path)
	} else {
		h, err = source.Open(appFs, path)
	}
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToOpenImage, err)
	}
	common.LogInfo(common.InfoProcessingImage, path, h.Size())
	return h, nil
}
