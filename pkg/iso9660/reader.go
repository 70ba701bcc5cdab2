package iso9660

import (
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/source"
	"github.com/spf13/afero"
)

// SkipDir can be returned by a WalkFunc to skip the directory it was called
// with. Returned for a file it is ignored.
var SkipDir = errors.New("skip this directory")

// WalkFunc is called for every entry in depth-first, on-disk order.
type WalkFunc func(path string, entry DirectoryEntry) error

// Reader navigates the ISO9660 structures of a 2048-byte sector image.
// All reads go through ReadAt, so a Reader never moves a shared cursor.
type Reader struct {
	src source.ByteSource
	pvd *VolumeDescriptor
}

// NewReader creates a reader over src
func NewReader(src source.ByteSource) *Reader {
	return &Reader{src: src}
}

// Size returns the image size in bytes.
func (r *Reader) Size() int64 {
	return r.src.Size()
}

// ReadSector reads one full logical sector.
func (r *Reader) ReadSector(lba int64) ([]byte, error) {
	off := lba * SectorSize
	if lba < 0 || !common.InRange(r.src.Size(), uint64(off), SectorSize) {
		return nil, common.NewDecodeError(common.ErrUnexpectedEndOfVolume, off,
			"sector %d is beyond the %d-byte image", lba, r.src.Size())
	}
	return source.ReadAt(r.src, off, SectorSize)
}

// LocatePVD scans the Volume Descriptor Set from sector 16 and returns the
// first Primary Volume Descriptor. The scan has no fixed bound: it stops at
// the set terminator (ErrPvdNotFound) or the end of the image
// (ErrUnexpectedEndOfVolume).
func (r *Reader) LocatePVD() (*VolumeDescriptor, error) {
	if r.pvd != nil {
		return r.pvd, nil
	}

	for lba := int64(VolumeDescriptorLBA); ; lba++ {
		data, err := r.ReadSector(lba)
		if err != nil {
			return nil, err
		}

		common.LogDebug(common.DebugSectorScanned, lba, data[0])

		switch data[0] {
		case TypePrimary:
			r.pvd = &VolumeDescriptor{Tag: data[0], Sector: lba, Data: data}
			return r.pvd, nil
		case TypeTerminator:
			return nil, common.NewDecodeError(common.ErrPvdNotFound, lba*SectorSize,
				"volume descriptor set terminated at sector %d", lba)
		}
	}
}

// Primary locates and decodes the Primary Volume Descriptor.
func (r *Reader) Primary() (*PrimaryDescriptor, error) {
	vd, err := r.LocatePVD()
	if err != nil {
		return nil, err
	}
	return ParsePrimary(vd)
}

// Root returns the root directory entry recorded in the PVD.
func (r *Reader) Root() (DirectoryEntry, error) {
	pvd, err := r.Primary()
	if err != nil {
		return DirectoryEntry{}, err
	}
	return pvd.RootDirectory, nil
}

// Walk visits every entry below the root directory depth first. Siblings
// are visited in on-disk record order.
func (r *Reader) Walk(fn WalkFunc) error {
	root, err := r.Root()
	if err != nil {
		return err
	}
	return r.walkDir(root, make(map[uint32]bool), fn)
}

func (r *Reader) walkDir(dir DirectoryEntry, visited map[uint32]bool, fn WalkFunc) error {
	if visited[dir.LBA] {
		return &common.DecodeError{
			Kind:   common.ErrCorruptDirectoryRecord,
			Offset: dir.Offset(),
			Path:   dir.Path,
			Detail: fmt.Sprintf("directory extent %d already visited", dir.LBA),
		}
	}
	visited[dir.LBA] = true

	entries, err := r.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		err := fn(entry.Path, entry)
		if !entry.IsDir {
			if err != nil && !errors.Is(err, SkipDir) {
				return err
			}
			continue
		}
		if errors.Is(err, SkipDir) {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.walkDir(entry, visited, fn); err != nil {
			return err
		}
	}
	return nil
}

// ReadDir decodes the records of one directory extent, skipping the self
// and parent entries.
func (r *Reader) ReadDir(dir DirectoryEntry) ([]DirectoryEntry, error) {
	data, err := r.readExtent(dir)
	if err != nil {
		return nil, err
	}
	entries, err := parseDirectory(data, dir.Offset(), dir.Path)
	if err != nil {
		return nil, common.WithPath(err, dir.Path)
	}
	return entries, nil
}

// Entries returns every entry of the image in walk order.
func (r *Reader) Entries() ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	err := r.Walk(func(_ string, entry DirectoryEntry) error {
		entries = append(entries, entry)
		return nil
	})
	return entries, err
}

// FindFiles returns the files accepted by match, in walk order.
func (r *Reader) FindFiles(match func(DirectoryEntry) bool) ([]DirectoryEntry, error) {
	var files []DirectoryEntry
	err := r.Walk(func(_ string, entry DirectoryEntry) error {
		if !entry.IsDir && match(entry) {
			files = append(files, entry)
		}
		return nil
	})
	return files, err
}

// HasSuffix matches file names ending in suffix, ignoring case.
func HasSuffix(suffix string) func(DirectoryEntry) bool {
	suffix = strings.ToUpper(suffix)
	return func(entry DirectoryEntry) bool {
		return strings.HasSuffix(strings.ToUpper(entry.Name), suffix)
	}
}

// ReadFile returns an owned copy of the entry's data extent.
func (r *Reader) ReadFile(entry DirectoryEntry) ([]byte, error) {
	return r.readExtent(entry)
}

// Open returns a reader bounded to the entry's data extent.
func (r *Reader) Open(entry DirectoryEntry) (*io.SectionReader, error) {
	if err := r.checkExtent(entry); err != nil {
		return nil, err
	}
	return io.NewSectionReader(r.src, entry.Offset(), int64(entry.Size)), nil
}

// ExtractFile copies a single file to outputPath on fs
func (r *Reader) ExtractFile(entry DirectoryEntry, fs afero.Fs, outputPath string) error {
	data, err := r.Open(entry)
	if err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	outFile, err := fs.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", outputPath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	common.LogDebug(common.DebugFileExtracted, entry.Path, entry.Size, outputPath)
	return nil
}

// ExtractAll recreates the image's directory tree under outputDir and
// returns the number of files written.
func (r *Reader) ExtractAll(fs afero.Fs, outputDir string) (int, error) {
	count := 0
	err := r.Walk(func(p string, entry DirectoryEntry) error {
		target := filepath.Join(outputDir, filepath.FromSlash(strings.TrimPrefix(p, "/")))
		if entry.IsDir {
			return fs.MkdirAll(target, 0o755)
		}
		if err := r.ExtractFile(entry, fs, target); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (r *Reader) checkExtent(entry DirectoryEntry) error {
	if !common.InRange(r.src.Size(), uint64(entry.LBA)*SectorSize, uint64(entry.Size)) {
		return &common.DecodeError{
			Kind:   common.ErrTruncatedExtent,
			Offset: entry.Offset(),
			Path:   entry.Path,
			Detail: fmt.Sprintf("extent of %d bytes at LBA %d exceeds the %d-byte image",
				entry.Size, entry.LBA, r.src.Size()),
		}
	}
	return nil
}

func (r *Reader) readExtent(entry DirectoryEntry) ([]byte, error) {
	if err := r.checkExtent(entry); err != nil {
		return nil, err
	}
	data, err := source.ReadAt(r.src, entry.Offset(), int(entry.Size))
	if err != nil {
		return nil, common.WithPath(err, entry.Path)
	}
	return data, nil
}

// parseDirectory walks the records of a directory extent. Records never
// cross a sector boundary: a zero length byte pads to the next sector.
func parseDirectory(data []byte, base int64, parent string) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry

	pos := 0
	for pos < len(data) {
		length := int(data[pos])
		if length == 0 {
			pos = (pos/SectorSize + 1) * SectorSize
			continue
		}
		if pos+length > len(data) {
			return nil, common.NewDecodeError(common.ErrCorruptDirectoryRecord, base+int64(pos),
				"record length %d exceeds directory extent", length)
		}

		entry, err := decodeRecord(data[pos:pos+length], base+int64(pos))
		if err != nil {
			return nil, err
		}
		pos += length

		if common.IsSpecialDirEntry(entry.Name) {
			continue
		}
		entry.Path = path.Join(parent, entry.Name)
		common.LogDebug(common.DebugDirectoryEntry, entry.Path, entry.LBA, entry.MSF, entry.Size, entry.IsDir)
		entries = append(entries, entry)
	}

	return entries, nil
}

// decodeRecord parses a single directory record. Special "." and ".."
// identifiers are returned unchanged as "\x00" and "\x01".
func decodeRecord(rec []byte, off int64) (DirectoryEntry, error) {
	if len(rec) < dirRecordMinLength {
		return DirectoryEntry{}, common.NewDecodeError(common.ErrCorruptDirectoryRecord, off,
			"record holds %d bytes, need at least %d", len(rec), dirRecordMinLength)
	}

	length := int(rec[0])
	if length < dirRecordMinLength || length > len(rec) {
		return DirectoryEntry{}, common.NewDecodeError(common.ErrCorruptDirectoryRecord, off,
			"invalid record length %d", length)
	}

	nameLength := int(rec[dirRecordNameLenOff])
	if dirRecordNameOff+nameLength > length {
		return DirectoryEntry{}, common.NewDecodeError(common.ErrCorruptDirectoryRecord, off,
			"name length %d exceeds record length %d", nameLength, length)
	}

	name := string(rec[dirRecordNameOff : dirRecordNameOff+nameLength])
	if !common.IsSpecialDirEntry(name) {
		name = common.CleanFileName(name)
	}

	lba := common.ExtractLBAFromDirRecord(rec)
	size := common.ExtractSizeFromDirRecord(rec)

	return DirectoryEntry{
		Name:       name,
		IsDir:      rec[dirRecordFlagsOff]&dirFlagDirectory != 0,
		LBA:        lba,
		Size:       size,
		MSF:        common.LBAToMSF(lba),
		ExtentSize: common.GetSizeInSectors(size),
	}, nil
}
