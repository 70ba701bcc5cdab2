package sfo

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/hansbonini/pspredump/pkg/common"
)

// Marshal encodes a table into the PSF layout: header, index table, key
// table and data table, with both tables aligned to 4 bytes. String values
// reserve their length rounded up to 4 bytes, as the PSP SDK tools do.
func Marshal(t *Table) ([]byte, error) {
	var major, minor uint8
	if _, err := fmt.Sscanf(t.Version, "%d.%d", &major, &minor); err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", t.Version, err)
	}

	var keys, data bytes.Buffer
	index := make([]IndexEntry, 0, t.Len())

	for _, e := range t.entries {
		keyOffset, err := common.SafeIntToUint16(keys.Len())
		if err != nil {
			return nil, fmt.Errorf("key table too large: %w", err)
		}
		keys.WriteString(e.Key)
		keys.WriteByte(0)

		payload := encodeValue(e.Value)
		dataOffset, err := common.SafeIntToUint32(data.Len())
		if err != nil {
			return nil, fmt.Errorf("data table too large: %w", err)
		}
		dataLen, err := common.SafeIntToUint32(len(payload))
		if err != nil {
			return nil, err
		}
		maxLen := align4(dataLen)
		data.Write(payload)
		data.Write(make([]byte, maxLen-dataLen))

		format := e.Value.Format
		if format == 0 {
			format = FormatUTF8
		}
		index = append(index, IndexEntry{
			KeyOffset:  keyOffset,
			FormatCode: uint16(format),
			DataLen:    dataLen,
			DataMaxLen: maxLen,
			DataOffset: dataOffset,
		})
	}
	keys.Write(make([]byte, align4(uint32(keys.Len()))-uint32(keys.Len())))

	entryCount, err := common.SafeIntToUint32(len(index))
	if err != nil {
		return nil, err
	}
	keyTableStart := uint32(HeaderSize + len(index)*IndexEntrySize)
	header := Header{
		Magic:          Magic,
		VersionMajor:   major,
		VersionMinor:   minor,
		KeyTableStart:  keyTableStart,
		DataTableStart: keyTableStart + uint32(keys.Len()),
		EntryCount:     entryCount,
	}

	var out bytes.Buffer
	packed, err := restruct.Pack(binary.LittleEndian, &header)
	if err != nil {
		return nil, fmt.Errorf("failed to pack header: %w", err)
	}
	out.Write(packed)
	for i := range index {
		packed, err := restruct.Pack(binary.LittleEndian, &index[i])
		if err != nil {
			return nil, fmt.Errorf("failed to pack index entry %d: %w", i, err)
		}
		out.Write(packed)
	}
	out.Write(keys.Bytes())
	out.Write(data.Bytes())
	return out.Bytes(), nil
}

func encodeValue(v Value) []byte {
	switch v.Format {
	case FormatInt32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, v.Int)
		return buf
	case FormatUTF8NoTerm:
		return []byte(v.Str)
	default:
		return append([]byte(v.Str), 0)
	}
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}
