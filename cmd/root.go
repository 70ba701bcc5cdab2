// Package cmd provides the command-line interface for pspredump.
// pspredump reads a PSP UMD image and produces the metadata a redump.org
// submission asks for: whole-image digests, the Primary Volume Descriptor
// dump and the decoded PARAM.SFO tables.
package cmd

import (
	"os"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/config"
	"github.com/hansbonini/pspredump/pkg/hexdump"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// appFs is where images are opened and outputs are written.
var appFs = afero.NewOsFs()

// newRootCmd builds the command tree. A fresh tree per run keeps flag state
// from leaking between invocations.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pspredump",
		Short: "Generate redump.org submission info from PSP ISO images",
		Long: `pspredump - Generate pre-filled redump.org submission reports from
PSP UMD images (.iso).

Currently supports:
  - Submission reports (digests, PVD dump, SFO info)
  - PARAM.SFO decoding
  - ISO9660 listing, PVD inspection and file extraction

Examples:
  pspredump report game.iso
  pspredump report --out game.txt --progress game.iso
  pspredump sfo game.iso
  pspredump iso ls game.iso
  pspredump iso dump -v game.iso ./output/

Use 'pspredump [command] --help' for more information about a command.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			common.SetVerboseMode(verbose)
			common.SetLogOutput(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")

	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newSFOCmd())
	rootCmd.AddCommand(newISOCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree against os.Args.
// This is called by main.main() and serves as the entry point for command execution.
func Execute() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs rootCmd and logs the error that ends the run.
func execute(rootCmd *cobra.Command) error {
	err := rootCmd.Execute()
	if err != nil {
		common.LogError("%v", err)
	}
	return err
}

// loadConfig reads --config and applies the command's changed flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(appFs, path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		cfg.ChunkSize, _ = flags.GetInt("chunk-size")
	}
	if flags.Changed("suffix") {
		cfg.SFOSuffix, _ = flags.GetString("suffix")
	}
	if flags.Changed("parallel") {
		cfg.Parallel, _ = flags.GetBool("parallel")
	}
	if flags.Changed("mmap") {
		cfg.Mmap, _ = flags.GetBool("mmap")
	}
	if flags.Changed("strict") {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("pvd-style") {
		style, _ := flags.GetString("pvd-style")
		cfg.PVDStyle = hexdump.Style(style)
	}
	return cfg, cfg.Validate()
}
