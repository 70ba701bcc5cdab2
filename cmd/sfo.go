package cmd

import (
	"fmt"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/config"
	"github.com/hansbonini/pspredump/pkg/iso9660"
	"github.com/hansbonini/pspredump/pkg/redump"
	"github.com/hansbonini/pspredump/pkg/sfo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

// newSFOCmd builds the sfo command.
// It decodes every parameter file of an image, or a single extracted file.
func newSFOCmd() *cobra.Command {
	sfoCmd := &cobra.Command{
		Use:   "sfo [input_file]",
		Short: "Print the contents of PARAM.SFO files",
		Long: `Print the key/value tables of the parameter files (.SFO) of a PSP ISO image.

Each file is printed as "SFO file: <path>" followed by its version line and
one "KEY: value" line per entry. Files that fail to decode are reported and
skipped unless --strict is set.

With --raw the input is read as a single parameter file instead of an image.

Examples:
  pspredump sfo game.iso
  pspredump sfo --raw PARAM.SFO`,
		Args: cobra.ExactArgs(1),
		RunE: runSFO,
	}

	defaults := config.Default()
	sfoCmd.Flags().String("suffix", defaults.SFOSuffix, "Name suffix of parameter files to decode")
	sfoCmd.Flags().Bool("mmap", false, "Memory-map the image instead of reading it")
	sfoCmd.Flags().Bool("strict", false, "Fail when any parameter file cannot be decoded")
	sfoCmd.Flags().Bool("raw", false, "Treat the input as a standalone parameter file")
	return sfoCmd
}

func runSFO(cmd *cobra.Command, args []string) error {
	inputFile := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		data, err := afero.ReadFile(appFs, inputFile)
		if err != nil {
			return common.FormatError(common.ErrFailedToReadFile, err)
		}
		table, err := sfo.Parse(data)
		if err != nil {
			return common.FormatError(common.ErrFailedToParseSFO, common.WithPath(err, inputFile))
		}
		fmt.Fprint(cmd.OutOrStdout(), table.String())
		return nil
	}

	img, err := openImage(inputFile, cfg)
	if err != nil {
		return err
	}
	defer img.Close()

	r := iso9660.NewReader(img)
	entries, err := r.FindFiles(iso9660.HasSuffix(cfg.SFOSuffix))
	if err != nil {
		return common.FormatError(common.ErrFailedToWalkDirectories, err)
	}
	common.LogInfo(common.InfoSFOFilesFound, len(entries))
	if len(entries) == 0 {
		common.LogWarn(common.WarnNoSFOFiles, cfg.SFOSuffix)
		return nil
	}

	var files []redump.SFOFile
	var errs error
	for _, entry := range entries {
		f := redump.ReadSFO(r, entry)
		if f.Err != nil {
			common.LogWarn(common.WarnSFOParseFailed, f.Path, f.Err)
			errs = multierr.Append(errs, f.Err)
		}
		files = append(files, f)
	}

	if info := redump.SFOInfo(files); info != "" {
		fmt.Fprintln(cmd.OutOrStdout(), info)
	}
	if errs != nil && cfg.Strict {
		return common.FormatError(common.ErrFailedToParseSFO, errs)
	}
	return nil
}
