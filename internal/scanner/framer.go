package scanner

import (
	"bytes"
	"strings"
)

// maxFrame bounds the pending buffer when a device never sends a terminator.
const maxFrame = 4096

// Framer splits a byte stream into codes on '\n' or '\r'. Bytes are decoded
// per frame, so a multi-byte character split across reads survives.
type Framer struct {
	buf []byte
	cfg Config
}

func NewFramer(cfg Config) *Framer {
	return &Framer{cfg: cfg}
}

// Feed appends p and returns every complete, non-empty code.
func (f *Framer) Feed(p []byte) []string {
	f.buf = append(f.buf, p...)

	var codes []string
	for {
		i := bytes.IndexAny(f.buf, "\r\n")
		if i < 0 {
			break
		}
		if code := f.normalize(f.buf[:i]); code != "" {
			codes = append(codes, code)
		}
		f.buf = append(f.buf[:0], f.buf[i+1:]...)
	}

	if len(f.buf) > maxFrame {
		f.buf = f.buf[:0]
	}
	return codes
}

// Pending reports the number of buffered bytes awaiting a terminator.
func (f *Framer) Pending() int { return len(f.buf) }

// Reset drops a partial frame, e.g. when the port is closed mid-code.
func (f *Framer) Reset() { f.buf = f.buf[:0] }

func (f *Framer) normalize(raw []byte) string {
	code := strings.TrimSpace(strings.ToValidUTF8(string(raw), "\uFFFD"))
	if f.cfg.IgnorePrefix != "" {
		code = strings.TrimPrefix(code, f.cfg.IgnorePrefix)
	}
	if f.cfg.IgnoreSuffix != "" {
		code = strings.TrimSuffix(code, f.cfg.IgnoreSuffix)
	}
	if f.cfg.StripSpaces {
		code = strings.TrimSpace(code)
	}
	if f.cfg.RemoveInnerSpaces {
		code = strings.Join(strings.Fields(code), "")
	}
	switch strings.ToLower(f.cfg.Case) {
	case "upper":
		code = strings.ToUpper(code)
	case "lower":
		code = strings.ToLower(code)
	}
	return strings.TrimSpace(code)
}
