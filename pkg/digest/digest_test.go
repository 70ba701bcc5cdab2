package digest

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/hansbonini/pspredump/pkg/common"
	"github.com/hansbonini/pspredump/pkg/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_Empty(t *testing.T) {
	got, err := Compute(source.FromBytes(nil), DefaultChunkSize)
	require.NoError(t, err)

	assert.Equal(t, DigestSet{
		CRC32:  "00000000",
		MD5:    "d41d8cd98f00b204e9800998ecf8427e",
		SHA1:   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
		SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}, got)
}

func TestCompute_KnownVector(t *testing.T) {
	got, err := Compute(source.FromBytes([]byte("123456789")), 4)
	require.NoError(t, err)

	assert.Equal(t, "cbf43926", got.CRC32)
	assert.Equal(t, "25f9e794323b453885f5181f1b624d0b", got.MD5)
	assert.Equal(t, "f7c3bc1d808e04732adf679965ccc34ca7ae3441", got.SHA1)
	assert.Equal(t, "15e2b0d3c33891ebb0f1ef609ec419420c20e320ce94c65fbc8c3312448eb225", got.SHA256)
}

func TestCompute_FixedWidth(t *testing.T) {
	// Across 256 prefixes some CRCs have leading zero nibbles; widths must hold.
	var data []byte
	for i := 0; i < 256; i++ {
		data = append(data, byte(i))
		got, err := Compute(source.FromBytes(data), 7)
		require.NoError(t, err)
		require.Len(t, got.CRC32, 8)
		require.Len(t, got.MD5, 32)
		require.Len(t, got.SHA1, 40)
		require.Len(t, got.SHA256, 64)
	}
}

func TestCompute_ChunkSizeIndependent(t *testing.T) {
	data := make([]byte, 200_000)
	for i := range data {
		data[i] = byte(i*31 + i>>8)
	}
	src := source.FromBytes(data)

	want, err := Compute(src, 1)
	require.NoError(t, err)

	for _, chunk := range []int{7, 4096, 65536, len(data) + 1} {
		got, err := Compute(src, chunk)
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunk size %d", chunk)
	}
}

func TestCompute_InvalidChunkSize(t *testing.T) {
	for _, chunk := range []int{0, -1} {
		_, err := Compute(source.FromBytes([]byte("x")), chunk)
		assert.True(t, errors.Is(err, ErrInvalidChunkSize), "chunk size %d", chunk)
	}
}

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, io.ErrClosedPipe
	}
	n := min(len(p), r.after)
	r.after -= n
	return n, nil
}

func TestFromReader_SourceError(t *testing.T) {
	_, err := FromReader(&failingReader{after: 10}, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSourceUnreadable))
}

func TestAccumulator_MatchesFromReader(t *testing.T) {
	data := bytes.Repeat([]byte("PSP"), 1000)

	acc := NewAccumulator()
	acc.Write(data[:10])
	acc.Write(data[10:])

	want, err := FromReader(bytes.NewReader(data), DefaultChunkSize)
	require.NoError(t, err)
	assert.Equal(t, want, acc.Sum())
	assert.Equal(t, int64(len(data)), acc.Len())
}
