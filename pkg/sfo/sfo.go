// Package sfo decodes PSF/SFO parameter files, the small key/value tables
// (TITLE, DISC_ID, PARENTAL_LEVEL, ...) stored as PARAM.SFO on PSP discs.
package sfo

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/go-restruct/restruct"
	"github.com/hansbonini/pspredump/pkg/common"
)

// Magic is the 4-byte signature at offset 0 of every parameter file.
var Magic = [4]byte{0x00, 'P', 'S', 'F'}

// Fixed layout sizes
const (
	HeaderSize     = 0x14
	IndexEntrySize = 0x10
)

// DataFormat is the declared encoding of a value. The codes read backwards
// in a hex dump; they are matched exactly, never decoded as bit fields.
type DataFormat uint16

const (
	FormatUTF8NoTerm DataFormat = 0x0004
	FormatUTF8       DataFormat = 0x0204
	FormatInt32      DataFormat = 0x0404
)

func (f DataFormat) String() string {
	switch f {
	case FormatUTF8NoTerm:
		return "utf8-s"
	case FormatUTF8:
		return "utf8"
	case FormatInt32:
		return "int32"
	default:
		return fmt.Sprintf("0x%04X", uint16(f))
	}
}

// Valid reports whether f is one of the three recognised codes.
func (f DataFormat) Valid() bool {
	return f == FormatUTF8NoTerm || f == FormatUTF8 || f == FormatInt32
}

// Header is the fixed 0x14-byte file header
type Header struct {
	Magic          [4]byte
	VersionMajor   uint8
	VersionMinor   uint8
	Reserved       [2]byte
	KeyTableStart  uint32
	DataTableStart uint32
	EntryCount     uint32
}

// Version renders the header version as "major.minor".
func (h Header) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// IndexEntry is one 16-byte record of the index table
type IndexEntry struct {
	KeyOffset  uint16
	FormatCode uint16
	DataLen    uint32
	DataMaxLen uint32 // reserved capacity, unused for decoding
	DataOffset uint32
}

// Format returns the declared data format.
func (e IndexEntry) Format() DataFormat {
	return DataFormat(e.FormatCode)
}

// Parse decodes a complete parameter file. Entries keep index-table order.
func Parse(raw []byte) (*Table, error) {
	header, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}
	common.LogDebug(common.DebugSFOHeader, header.VersionMajor, header.VersionMinor,
		header.KeyTableStart, header.DataTableStart, header.EntryCount)

	index, err := decodeIndex(raw, header)
	if err != nil {
		return nil, err
	}

	table := &Table{Version: header.Version(), entries: make([]Entry, 0, len(index))}
	for i, entry := range index {
		key, err := readKey(raw, header, index, i)
		if err != nil {
			return nil, err
		}
		value, err := readValue(raw, header, entry, i)
		if err != nil {
			return nil, err
		}
		common.LogDebug(common.DebugSFOEntry, i, key, entry.Format(), entry.DataLen, entry.DataMaxLen)
		table.Append(key, value)
	}
	return table, nil
}

func decodeHeader(raw []byte) (Header, error) {
	var header Header
	if len(raw) < len(Magic) || !bytes.Equal(raw[:len(Magic)], Magic[:]) {
		got := raw[:min(len(raw), len(Magic))]
		return header, common.NewDecodeError(common.ErrBadMagic, 0,
			"expected % X, got % X", Magic[:], got)
	}
	if len(raw) < HeaderSize {
		return header, common.NewDecodeError(common.ErrTruncatedField, int64(len(raw)),
			"header needs %d bytes, file holds %d", HeaderSize, len(raw))
	}
	if err := restruct.Unpack(raw[:HeaderSize], binary.LittleEndian, &header); err != nil {
		return header, common.NewDecodeError(common.ErrTruncatedField, 0, "header: %v", err)
	}
	return header, nil
}

func decodeIndex(raw []byte, header Header) ([]IndexEntry, error) {
	tableLen := uint64(header.EntryCount) * IndexEntrySize
	if !common.InRange(int64(len(raw)), HeaderSize, tableLen) {
		return nil, common.NewDecodeError(common.ErrTruncatedField, HeaderSize,
			"index table of %d entries needs %d bytes, file holds %d",
			header.EntryCount, HeaderSize+tableLen, len(raw))
	}

	index := make([]IndexEntry, header.EntryCount)
	for i := range index {
		off := HeaderSize + i*IndexEntrySize
		if err := restruct.Unpack(raw[off:off+IndexEntrySize], binary.LittleEndian, &index[i]); err != nil {
			return nil, common.NewDecodeError(common.ErrTruncatedField, int64(off), "index entry %d: %v", i, err)
		}
		if !index[i].Format().Valid() {
			return nil, common.NewDecodeError(common.ErrUnknownDataFormat, int64(off+2),
				"index entry %d declares format %s", i, index[i].Format())
		}
	}
	return index, nil
}

// readKey bounds a key by the next entry's key start, or by the data table
// for the last entry; keys carry no length of their own.
func readKey(raw []byte, header Header, index []IndexEntry, i int) (string, error) {
	start := uint64(header.KeyTableStart) + uint64(index[i].KeyOffset)
	end := uint64(header.DataTableStart)
	if i+1 < len(index) {
		end = uint64(header.KeyTableStart) + uint64(index[i+1].KeyOffset)
	}
	if end < start {
		return "", common.NewDecodeError(common.ErrTruncatedField, int64(start),
			"key %d ends at 0x%X before it starts", i, end)
	}

	span, ok := common.Span(raw, start, end-start)
	if !ok {
		return "", common.NewDecodeError(common.ErrTruncatedField, int64(start),
			"key %d spans 0x%X-0x%X past the %d-byte file", i, start, end, len(raw))
	}
	if !utf8.Valid(span) {
		return "", common.NewDecodeError(common.ErrInvalidUtf8, int64(start), "key %d", i)
	}
	return string(common.TrimNUL(span)), nil
}

func readValue(raw []byte, header Header, entry IndexEntry, i int) (Value, error) {
	start := uint64(header.DataTableStart) + uint64(entry.DataOffset)
	span, ok := common.Span(raw, start, uint64(entry.DataLen))
	if !ok {
		return Value{}, common.NewDecodeError(common.ErrTruncatedField, int64(start),
			"value %d of %d bytes runs past the %d-byte file", i, entry.DataLen, len(raw))
	}

	if entry.Format() == FormatInt32 {
		if entry.DataLen != 4 {
			return Value{}, common.NewDecodeError(common.ErrBadIntegerWidth, int64(start),
				"value %d declares %d bytes for an int32", i, entry.DataLen)
		}
		return IntValue(binary.LittleEndian.Uint32(span)), nil
	}

	if !utf8.Valid(span) {
		return Value{}, common.NewDecodeError(common.ErrInvalidUtf8, int64(start), "value %d", i)
	}
	return Value{Format: entry.Format(), Str: string(common.TrimNUL(span))}, nil
}
