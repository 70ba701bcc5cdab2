package cmd

import (
	"fmt"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/hexdump"
	"github.com/hansbonini/pspredump/pkg/iso9660"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// newISOCmd builds the parent command for ISO9660 inspection.
func newISOCmd() *cobra.Command {
	isoCmd := &cobra.Command{
		Use:   "iso",
		Short: "Inspect the ISO9660 file system of PSP images",
		Long: `Inspect the ISO9660 file system of PSP UMD images.

Commands:
  ls        List every file and directory
  pvd       Show the Primary Volume Descriptor
  dump      Extract every file to a directory

Examples:
  pspredump iso ls game.iso
  pspredump iso pvd game.iso
  pspredump iso dump game.iso ./output/`,
	}

	isoCmd.AddCommand(newISOListCmd())
	isoCmd.AddCommand(newISOPVDCmd())
	isoCmd.AddCommand(newISODumpCmd())
	return isoCmd
}

// newISOListCmd lists the directory tree with the extent of each entry:
// ID (4-digit hex), MSF, LBA, size in bytes and path.
func newISOListCmd() *cobra.Command {
	lsCmd := &cobra.Command{
		Use:   "ls [input_file]",
		Short: "List files in a PSP ISO image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			img, err := openImage(args[0], cfg)
			if err != nil {
				return err
			}
			defer img.Close()

			entries, err := iso9660.NewReader(img).Entries()
			if err != nil {
				return common.FormatError(common.ErrFailedToWalkDirectories, err)
			}

			out := table.NewWriter()
			out.SetOutputMirror(cmd.OutOrStdout())
			out.AppendHeader(table.Row{"ID", "MSF", "LBA", "Size", "Path"})
			for i, e := range entries {
				path := e.Path
				if e.IsDir {
					path += "/"
				}
				out.AppendRow(table.Row{fmt.Sprintf("%04X", i), e.MSF, e.LBA, e.Size, path})
			}
			out.SetStyle(table.StyleLight)
			out.Render()
			return nil
		},
	}
	lsCmd.Flags().Bool("mmap", false, "Memory-map the image instead of reading it")
	return lsCmd
}

// newISOPVDCmd prints the decoded Primary Volume Descriptor followed by the
// dump of its redump window.
func newISOPVDCmd() *cobra.Command {
	pvdCmd := &cobra.Command{
		Use:   "pvd [input_file]",
		Short: "Show the Primary Volume Descriptor of a PSP ISO image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			img, err := openImage(args[0], cfg)
			if err != nil {
				return err
			}
			defer img.Close()

			r := iso9660.NewReader(img)
			vd, err := r.LocatePVD()
			if err != nil {
				return common.FormatError(common.ErrFailedToLocatePVD, err)
			}
			pvd, err := iso9660.ParsePrimary(vd)
			if err != nil {
				return common.FormatError(common.ErrFailedToLocatePVD, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Sector:            %d\n", vd.Sector)
			fmt.Fprintf(w, "System ID:         %s\n", pvd.SystemID)
			fmt.Fprintf(w, "Volume ID:         %s\n", pvd.VolumeID)
			fmt.Fprintf(w, "Volume Set ID:     %s\n", pvd.VolumeSetID)
			fmt.Fprintf(w, "Publisher ID:      %s\n", pvd.PublisherID)
			fmt.Fprintf(w, "Data Preparer ID:  %s\n", pvd.DataPreparerID)
			fmt.Fprintf(w, "Application ID:    %s\n", pvd.ApplicationID)
			fmt.Fprintf(w, "Volume Space Size: %d\n", pvd.VolumeSpaceSize)
			fmt.Fprintf(w, "Creation Date:     %s\n", pvd.CreationDate)
			fmt.Fprintf(w, "Modification Date: %s\n", pvd.ModificationDate)

			window, err := hexdump.Window(vd.Data, cfg.PVDOffset, cfg.PVDLength)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			fmt.Fprint(w, hexdump.Render(cfg.PVDStyle, window, uint32(cfg.PVDOffset)))
			return nil
		},
	}
	pvdCmd.Flags().Bool("mmap", false, "Memory-map the image instead of reading it")
	pvdCmd.Flags().String("pvd-style", string(hexdump.StyleDefault), "PVD dump layout: default or isobuster")
	return pvdCmd
}

// newISODumpCmd extracts files from the image.
// It walks the ISO9660 tree and recreates it under the output directory.
func newISODumpCmd() *cobra.Command {
	dumpCmd := &cobra.Command{
		Use:   "dump [input_file] [output_directory]",
		Short: "Extract files from a PSP ISO image",
		Long: `Extract files from a PSP ISO image.

This command reads the ISO9660 file system and extracts all files. When
verbose mode is enabled (-v), it logs every file as it is written.

Output:
  - Extracted files maintain the original directory structure

Example:
  pspredump iso dump game.iso ./output/
  pspredump iso dump -v game.iso ./output/`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFile := args[0]
			outputDir := args[1]

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			img, err := openImage(inputFile, cfg)
			if err != nil {
				return err
			}
			defer img.Close()

			count, err := iso9660.NewReader(img).ExtractAll(appFs, outputDir)
			if err != nil {
				return common.FormatError(common.ErrFailedToReadFile, err)
			}

			common.LogInfo(common.InfoFilesExtracted, count, outputDir)
			return nil
		},
	}
	dumpCmd.Flags().Bool("mmap", false, "Memory-map the image instead of reading it")
	return dumpCmd
}
