package common

// InRange reports whether the half-open span [offset, offset+length) lies
// inside a buffer or source of the given size. The arithmetic is done in
// uint64 so attacker-controlled 32-bit fields cannot wrap.
func InRange(size int64, offset, length uint64) bool {
	if size < 0 {
		return false
	}
	end := offset + length
	if end < offset {
		return false
	}
	return end <= uint64(size)
}

// Span returns buf[offset:offset+length] or false if the span leaves buf.
func Span(buf []byte, offset, length uint64) ([]byte, bool) {
	if !InRange(int64(len(buf)), offset, length) {
		return nil, false
	}
	return buf[offset : offset+length], true
}

// TrimNUL strips trailing zero bytes.
func TrimNUL(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
