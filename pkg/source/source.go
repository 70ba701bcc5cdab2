// Package source provides the read-only, random-access byte sources that the
// digest and ISO9660 passes consume.
//
// Every pass reads through ReadAt, so a single open source can be shared by
// several passes without any of them disturbing another's position.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/spf13/afero"
	"golang.org/x/exp/mmap"
)

// ByteSource is an addressable, read-only sequence of bytes of known length.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Handle is an opened ByteSource that owns an underlying file.
type Handle interface {
	ByteSource
	io.Closer
}

// FromBytes wraps an in-memory image.
func FromBytes(data []byte) ByteSource {
	return bytes.NewReader(data)
}

// File is a ByteSource backed by an afero file handle.
type File struct {
	f    afero.File
	size int64
}

// Open opens path on fs as a ByteSource.
func Open(fs afero.Fs, path string) (*File, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSourceUnreadable, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", common.ErrSourceUnreadable, path)
	}
	return &File{f: f, size: info.Size()}, nil
}

func (s *File) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *File) Size() int64 {
	return s.size
}

func (s *File) Close() error {
	return s.f.Close()
}

// Mapped is a ByteSource backed by a read-only memory mapping of a file on
// the local filesystem.
type Mapped struct {
	r *mmap.ReaderAt
}

// OpenMapped memory-maps path.
func OpenMapped(path string) (*Mapped, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSourceUnreadable, err)
	}
	return &Mapped{r: r}, nil
}

func (s *Mapped) ReadAt(p []byte, off int64) (int, error) {
	return s.r.ReadAt(p, off)
}

func (s *Mapped) Size() int64 {
	return int64(s.r.Len())
}

func (s *Mapped) Close() error {
	return s.r.Close()
}

// Reader returns an independent sequential reader over the whole source,
// starting at offset 0.
func Reader(src ByteSource) *io.SectionReader {
	return io.NewSectionReader(src, 0, src.Size())
}

// ReadAt reads exactly n bytes at off. The caller is expected to have
// bounds-checked the span; a short read here means the source itself failed
// and is reported as ErrSourceUnreadable.
func ReadAt(src ByteSource, off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := src.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, common.NewDecodeError(common.ErrSourceUnreadable, off,
		"read %d of %d bytes: %v", read, n, err)
}
