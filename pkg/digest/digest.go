// Package digest computes the whole-image checksums recorded in a redump
// report: CRC32, MD5, SHA-1 and SHA-256 in a single sequential pass.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/source"
)

// DefaultChunkSize matches the 64 KiB reads used for large disc images.
const DefaultChunkSize = 0x10000

// ErrInvalidChunkSize is returned for chunk sizes below one byte.
var ErrInvalidChunkSize = errors.New("chunk size must be at least 1 byte")

// DigestSet holds fixed-width lowercase hex renderings of each digest.
type DigestSet struct {
	CRC32  string `yaml:"crc32"`
	MD5    string `yaml:"md5"`
	SHA1   string `yaml:"sha1"`
	SHA256 string `yaml:"sha256"`
}

// Accumulator feeds every written chunk to all four digests. The CRC32 is a
// running IEEE value updated chunk by chunk.
type Accumulator struct {
	crc    uint32
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	n      int64
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
	}
}

// Write never fails.
func (a *Accumulator) Write(p []byte) (int, error) {
	a.crc = crc32.Update(a.crc, crc32.IEEETable, p)
	a.md5.Write(p)
	a.sha1.Write(p)
	a.sha256.Write(p)
	a.n += int64(len(p))
	return len(p), nil
}

// Len returns the number of bytes consumed so far.
func (a *Accumulator) Len() int64 {
	return a.n
}

// Sum renders the current state without resetting it.
func (a *Accumulator) Sum() DigestSet {
	return DigestSet{
		CRC32:  fmt.Sprintf("%08x", a.crc),
		MD5:    hex.EncodeToString(a.md5.Sum(nil)),
		SHA1:   hex.EncodeToString(a.sha1.Sum(nil)),
		SHA256: hex.EncodeToString(a.sha256.Sum(nil)),
	}
}

// Compute digests src from offset 0 to its end in chunkSize reads. The pass
// uses its own cursor, so it never disturbs other readers of src.
func Compute(src source.ByteSource, chunkSize int) (DigestSet, error) {
	return FromReader(source.Reader(src), chunkSize)
}

// FromReader digests r until EOF in chunkSize reads.
func FromReader(r io.Reader, chunkSize int) (DigestSet, error) {
	if chunkSize < 1 {
		return DigestSet{}, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	common.LogDebug(common.DebugDigestChunkSize, chunkSize)

	acc := NewAccumulator()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return DigestSet{}, common.NewDecodeError(common.ErrSourceUnreadable, acc.Len(), "%v", err)
		}
	}
	return acc.Sum(), nil
}
