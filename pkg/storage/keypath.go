package storage

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// sep separates key-path segments in the encoded byte form. Segment values
// never contain control characters, so 0x1f is safe as a delimiter and
// sorts below all printable bytes, which keeps prefix scans from bleeding
// into sibling keys ("HB1" vs "HB10").
const sep = byte(0x1f)

// Key is an ordered sequence of path segments addressing one cache entry.
type Key []string

// K builds a key from segments.
func K(segments ...string) Key {
	return Key(segments)
}

// Append returns a new key with extra segments added. The receiver is not
// modified.
func (k Key) Append(segments ...string) Key {
	out := make(Key, 0, len(k)+len(segments))
	out = append(out, k...)
	out = append(out, segments...)
	return out
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Encode renders the key into its stored byte form.
func (k Key) Encode() []byte {
	if len(k) == 0 {
		return nil
	}
	n := len(k) - 1
	for _, s := range k {
		n += len(s)
	}
	buf := make([]byte, 0, n)
	for i, s := range k {
		if i > 0 {
			buf = append(buf, sep)
		}
		buf = append(buf, s...)
	}
	return buf
}

// DecodeKey parses a stored byte key back into segments.
func DecodeKey(b []byte) Key {
	if len(b) == 0 {
		return nil
	}
	parts := bytes.Split(b, []byte{sep})
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = string(p)
	}
	return k
}

// scanPrefix returns the byte prefix that matches exactly the entries
// below the given key path: the encoded key plus a trailing separator.
// An empty key matches every entry.
func scanPrefix(prefix Key) []byte {
	if len(prefix) == 0 {
		return []byte{}
	}
	return append(prefix.Encode(), sep)
}

// CongressSeg renders a congress number as a fixed-width key segment so
// lexicographic scan order matches numeric order.
func CongressSeg(congress int) string {
	return fmt.Sprintf("%04d", congress)
}

// ParseCongressSeg parses a segment produced by CongressSeg. Returns 0 for
// malformed segments.
func ParseCongressSeg(seg string) int {
	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0
	}
	return n
}
