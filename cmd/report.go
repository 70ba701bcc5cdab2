package cmd

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb/v3"
	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/config"
	"github.com/hansbonini/pspredump/pkg/redump"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// addPipelineFlags registers the flags that override configuration values.
func addPipelineFlags(cmd *cobra.Command) {
	defaults := config.Default()
	cmd.Flags().Int("chunk-size", defaults.ChunkSize, "Read size of the digest pass in bytes")
	cmd.Flags().String("suffix", defaults.SFOSuffix, "Name suffix of parameter files to decode")
	cmd.Flags().Bool("parallel", false, "Run the digest and structure passes concurrently")
	cmd.Flags().Bool("mmap", false, "Memory-map the image instead of reading it")
	cmd.Flags().Bool("strict", false, "Fail when any parameter file cannot be decoded")
	cmd.Flags().String("pvd-style", string(defaults.PVDStyle), "PVD dump layout: default or isobuster")
}

// newReportCmd builds the report command.
// It runs every extraction pass and renders the submission template.
func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report [input_file]",
		Short: "Generate a pre-filled redump submission report",
		Long: `Generate a pre-filled redump.org submission report from a PSP ISO image.

The report contains:
  - General info with <FILL_ME> placeholders and the image size
  - MD5, SHA1, CRC32 and SHA256 of the whole image
  - Hex dump of the Primary Volume Descriptor at 0x320
  - Every PARAM.SFO found in the image

Output goes to stdout unless --out is given. An existing --out file is never
overwritten.

Examples:
  pspredump report game.iso
  pspredump report --out game.txt --progress game.iso
  pspredump report --format yaml game.iso`,
		Args: cobra.ExactArgs(1),
		RunE: runReport,
	}

	addPipelineFlags(reportCmd)
	reportCmd.Flags().StringP("out", "o", "", "Write the report to this file")
	reportCmd.Flags().StringP("format", "f", "text", "Output format: text or yaml")
	reportCmd.Flags().BoolP("progress", "p", false, "Show a progress bar while hashing")
	return reportCmd
}

func runReport(cmd *cobra.Command, args []string) error {
	inputFile := args[0]

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	outFile, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")
	progress, _ := cmd.Flags().GetBool("progress")

	render, err := reportRenderer(format)
	if err != nil {
		return err
	}

	if outFile != "" {
		exists, err := afero.Exists(appFs, outFile)
		if err != nil {
			return common.FormatError(common.ErrFailedToCreateOutput, err)
		}
		if exists {
			return common.FormatError(common.ErrOutputAlreadyExists, outFile)
		}
	}

	img, err := openImage(inputFile, cfg)
	if err != nil {
		return err
	}
	defer img.Close()

	opts := redump.OptionsFromConfig(cfg)
	if progress {
		bar := pb.New64(img.Size()).SetTemplate(pb.Full).SetWriter(cmd.ErrOrStderr()).Start()
		defer bar.Finish()
		opts.DigestReader = func(r io.Reader) io.Reader {
			return bar.NewProxyReader(r)
		}
	}

	res, fileErrs := redump.Extract(cmd.Context(), img, opts)
	if res == nil {
		return fileErrs
	}

	if outFile == "" {
		if err := render(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		if err := writeReport(outFile, res, render); err != nil {
			return err
		}
		common.LogInfo(common.InfoReportWritten, outFile)
	}

	if fileErrs != nil && cfg.Strict {
		return common.FormatError(common.ErrFailedToParseSFO, fileErrs)
	}
	return nil
}

type renderFunc func(io.Writer, *redump.Result) error

func reportRenderer(format string) (renderFunc, error) {
	switch format {
	case "text":
		return redump.RenderReport, nil
	case "yaml":
		return redump.WriteYAML, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or yaml)", format)
	}
}

func writeReport(path string, res *redump.Result, render renderFunc) error {
	f, err := appFs.Create(path)
	if err != nil {
		return common.FormatError(common.ErrFailedToCreateOutput, err)
	}
	if err := render(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
