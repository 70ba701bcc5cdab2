// Package hexdump renders fixed-size regions of a disc image as text.
package hexdump

import (
	"fmt"
	"strings"

	"github.com/hansbonini/pspredump/pkg/common"
)

// LineSize is the number of bytes shown per line.
const LineSize = 16

// Style selects the line layout.
type Style string

const (
	StyleDefault   Style = "default"
	StyleIsoBuster Style = "isobuster"
)

// Valid reports whether s names a known layout.
func (s Style) Valid() bool {
	return s == StyleDefault || s == StyleIsoBuster
}

// Render formats data in the given style. Unknown styles fall back to Format.
func Render(style Style, data []byte, base uint32) string {
	if style == StyleIsoBuster {
		return FormatIsoBuster(data, base)
	}
	return Format(data, base)
}

// Format renders whole 16-byte lines as
//
//	0320: 00 01 02 03 04 05 06 07  08 09 0A 0B 0C 0D 0E 0F  ................
//
// Bytes past the last whole line are not rendered.
func Format(data []byte, base uint32) string {
	var b strings.Builder
	for off := 0; off+LineSize <= len(data); off += LineSize {
		line := data[off : off+LineSize]
		fmt.Fprintf(&b, "%04x: ", (base+uint32(off))&0xFFFF)
		writeHex(&b, line[:8])
		b.WriteByte(' ')
		writeHex(&b, line[8:])
		b.WriteByte(' ')
		writeASCII(&b, line, 0x7E)
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatIsoBuster renders the layout IsoBuster uses in its sector view,
// which is what disc preservation databases expect pasted into a submission:
//
//	0320 : 00 01 02 03 04 05 06 07  08 09 0A 0B 0C 0D 0E 0F   ................
func FormatIsoBuster(data []byte, base uint32) string {
	var b strings.Builder
	for off := 0; off+LineSize <= len(data); off += LineSize {
		line := data[off : off+LineSize]
		fmt.Fprintf(&b, "%04X : ", (base+uint32(off))&0xFFFF)
		writeHex(&b, line[:8])
		b.WriteByte(' ')
		writeHex(&b, line[8:])
		b.WriteString("  ")
		writeASCII(&b, line, 0x7F)
		b.WriteByte('\n')
	}
	return b.String()
}

// Window returns sector[offset:offset+length] or a TruncatedField error.
func Window(sector []byte, offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, common.NewDecodeError(common.ErrTruncatedField, int64(offset),
			"negative window %d+%d", offset, length)
	}
	span, ok := common.Span(sector, uint64(offset), uint64(length))
	if !ok {
		return nil, common.NewDecodeError(common.ErrTruncatedField, int64(offset),
			"window of %d bytes exceeds the %d-byte sector", length, len(sector))
	}
	return span, nil
}

// writeHex writes each byte as "XX " including a trailing space.
func writeHex(b *strings.Builder, data []byte) {
	for _, c := range data {
		fmt.Fprintf(b, "%02X ", c)
	}
}

func writeASCII(b *strings.Builder, data []byte, maxPrintable byte) {
	for _, c := range data {
		if c >= 0x20 && c <= maxPrintable {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
}
