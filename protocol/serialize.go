package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Serialize returns the canonical byte encoding the event ID commits to:
// a JSON array of [0, pubkey, created_at, kind, tags, content]. The encoding
// must byte-match every other implementation, so it is written by hand
// instead of going through encoding/json, which escapes '<', '>', '&' and
// (through historic accident in some stacks) U+2028/U+2029. Strict JSON
// string escaping only.
func (e Event) Serialize() []byte {
	var b strings.Builder
	b.WriteString(`[0,"`)
	b.WriteString(e.PubKey)
	b.WriteString(`",`)
	b.WriteString(strconv.FormatInt(e.CreatedAt, 10))
	b.WriteString(`,`)
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteString(`,`)
	e.Tags.writeTo(&b)
	b.WriteString(`,`)
	writeEscapedString(&b, e.Content)
	b.WriteString(`]`)
	return []byte(b.String())
}

func (ts Tags) writeTo(b *strings.Builder) {
	b.WriteByte('[')
	for i, tag := range ts {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, s := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			writeEscapedString(b, s)
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
}

// writeEscapedString emits s as a JSON string escaping only what RFC 8259
// requires: the quote, the backslash and control characters. Everything else,
// including non-ASCII, passes through as raw UTF-8.
func writeEscapedString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, c := range []byte(s) {
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\b':
			b.WriteString(`\b`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\f':
			b.WriteString(`\f`)
		case c == '\r':
			b.WriteString(`\r`)
		case c < 0x20:
			b.WriteString(`\u00`)
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
}

const hexDigits = "0123456789abcdef"

// GetID derives the content address of the event: the SHA-256 of its
// canonical serialization, hex encoded.
func (e Event) GetID() string {
	h := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(h[:])
}
