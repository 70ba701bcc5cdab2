// Package redump runs the extraction passes over a PSP disc image and
// assembles the results into a pre-filled redump.org submission report.
package redump

import (
	"context"
	"io"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/config"
	"github.com/hansbonini/pspredump/pkg/digest"
	"github.com/hansbonini/pspredump/pkg/hexdump"
	"github.com/hansbonini/pspredump/pkg/iso9660"
	"github.com/hansbonini/pspredump/pkg/sfo"
	"github.com/hansbonini/pspredump/pkg/source"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Options controls a single extraction run.
type Options struct {
	ChunkSize int
	SFOSuffix string
	PVDOffset int
	PVDLength int
	PVDStyle  hexdump.Style
	Parallel  bool

	// DigestReader, when set, wraps the stream fed to the digest pass.
	// The CLI uses it to drive a progress bar.
	DigestReader func(io.Reader) io.Reader
}

// OptionsFromConfig maps a loaded configuration onto run options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ChunkSize: cfg.ChunkSize,
		SFOSuffix: cfg.SFOSuffix,
		PVDOffset: cfg.PVDOffset,
		PVDLength: cfg.PVDLength,
		PVDStyle:  cfg.PVDStyle,
		Parallel:  cfg.Parallel,
	}
}

// SFOFile is one parameter file found in the image. Exactly one of Table
// and Err is set.
type SFOFile struct {
	Path  string
	Entry iso9660.DirectoryEntry
	Table *sfo.Table
	Err   error
}

// MarshalYAML reports a decode failure as its message.
func (f SFOFile) MarshalYAML() (interface{}, error) {
	out := struct {
		Path  string     `yaml:"path"`
		Table *sfo.Table `yaml:"table,omitempty"`
		Error string     `yaml:"error,omitempty"`
	}{Path: f.Path, Table: f.Table}
	if f.Err != nil {
		out.Error = f.Err.Error()
	}
	return out, nil
}

// Result is everything extracted from one image.
type Result struct {
	Size      int64                      `yaml:"size"`
	Digests   digest.DigestSet           `yaml:"digests"`
	PVD       *iso9660.PrimaryDescriptor `yaml:"pvd"`
	PVDSector int64                      `yaml:"pvd_sector"`
	PVDDump   string                     `yaml:"pvd_dump"`
	SFOFiles  []SFOFile                  `yaml:"sfo_files"`
}

// Tables returns the successfully parsed parameter files.
func (r *Result) Tables() []SFOFile {
	var ok []SFOFile
	for _, f := range r.SFOFiles {
		if f.Err == nil {
			ok = append(ok, f)
		}
	}
	return ok
}

// Extract digests src, dumps its PVD window and decodes every parameter
// file. Failures of the digest pass, the PVD or the directory walk are fatal
// and return a nil Result. Parameter files that fail to decode are recorded
// on their SFOFile, and the combined error is returned with the Result.
func Extract(ctx context.Context, src source.ByteSource, opts Options) (*Result, error) {
	res := &Result{Size: src.Size()}

	digestPass := func(ctx context.Context) error {
		d, err := runDigest(ctx, src, opts)
		if err != nil {
			return common.FormatError(common.ErrFailedToComputeDigests, err)
		}
		res.Digests = d
		common.LogInfo(common.InfoDigestsComputed, d.CRC32, d.MD5)
		return nil
	}

	var fileErrs error
	structurePass := func(ctx context.Context) error {
		var err error
		fileErrs, err = extractStructure(ctx, iso9660.NewReader(src), opts, res)
		return err
	}

	if opts.Parallel {
		common.LogDebug(common.DebugParallelPasses)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return digestPass(gctx) })
		g.Go(func() error { return structurePass(gctx) })
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		common.LogDebug(common.DebugSequentialPasses)
		if err := digestPass(ctx); err != nil {
			return nil, err
		}
		if err := structurePass(ctx); err != nil {
			return nil, err
		}
	}

	return res, fileErrs
}

// runDigest hashes src until EOF or until ctx is done, so a failed
// structure pass stops a parallel digest pass early.
func runDigest(ctx context.Context, src source.ByteSource, opts Options) (digest.DigestSet, error) {
	var r io.Reader = contextReader{ctx: ctx, r: source.Reader(src)}
	if opts.DigestReader != nil {
		r = opts.DigestReader(r)
	}
	d, err := digest.FromReader(r, opts.ChunkSize)
	if err != nil && ctx.Err() != nil {
		return d, ctx.Err()
	}
	return d, err
}

// contextReader fails every Read once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// extractStructure fills the PVD and parameter file fields of res. The
// returned fileErrs combines per-file failures; err is fatal.
func extractStructure(ctx context.Context, r *iso9660.Reader, opts Options, res *Result) (fileErrs error, err error) {
	vd, err := r.LocatePVD()
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToLocatePVD, err)
	}
	common.LogInfo(common.InfoPVDLocated, vd.Sector)

	pvd, err := iso9660.ParsePrimary(vd)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToLocatePVD, err)
	}
	window, err := hexdump.Window(vd.Data, opts.PVDOffset, opts.PVDLength)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToLocatePVD, err)
	}
	res.PVD = pvd
	res.PVDSector = vd.Sector
	res.PVDDump = hexdump.Render(opts.PVDStyle, window, uint32(opts.PVDOffset))

	files, err := r.FindFiles(iso9660.HasSuffix(opts.SFOSuffix))
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToWalkDirectories, err)
	}
	common.LogInfo(common.InfoSFOFilesFound, len(files))
	if len(files) == 0 {
		common.LogWarn(common.WarnNoSFOFiles, opts.SFOSuffix)
	}

	for _, entry := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f := ReadSFO(r, entry)
		if f.Err != nil {
			common.LogWarn(common.WarnSFOParseFailed, f.Path, f.Err)
			fileErrs = multierr.Append(fileErrs, f.Err)
		}
		res.SFOFiles = append(res.SFOFiles, f)
	}
	return fileErrs, nil
}

// ReadSFO reads and decodes one parameter file. Decode errors carry the
// file's path.
func ReadSFO(r *iso9660.Reader, entry iso9660.DirectoryEntry) SFOFile {
	f := SFOFile{Path: entry.Path, Entry: entry}

	data, err := r.ReadFile(entry)
	if err != nil {
		f.Err = common.WithPath(err, entry.Path)
		return f
	}
	table, err := sfo.Parse(data)
	if err != nil {
		f.Err = common.WithPath(err, entry.Path)
		return f
	}
	for _, key := range table.Duplicates() {
		common.LogWarn(common.WarnDuplicateSFOKey, key)
	}
	f.Table = table
	return f
}
