package scanner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFramer_SplitsAcrossReads(t *testing.T) {
	f := NewFramer(Config{})

	assert.Empty(t, f.Feed([]byte("E0")))
	assert.Equal(t, 2, f.Pending())
	assert.Equal(t, []string{"E001"}, f.Feed([]byte("01\r\n")))
	assert.Zero(t, f.Pending())
}

func TestFramer_MultipleCodesAndTerminators(t *testing.T) {
	f := NewFramer(Config{})
	assert.Equal(t, []string{"A1", "B2", "C3"}, f.Feed([]byte("A1\r\nB2\nC3\r\r\n")))
}

func TestFramer_MultiByteSplitAcrossReads(t *testing.T) {
	f := NewFramer(Config{})
	raw := []byte("CAFÉ\n")
	i := strings.Index(string(raw), "É") + 1 // inside the two-byte rune

	assert.Empty(t, f.Feed(raw[:i]))
	assert.Equal(t, []string{"CAFÉ"}, f.Feed(raw[i:]))
}

func TestFramer_InvalidBytesAreReplaced(t *testing.T) {
	f := NewFramer(Config{})
	assert.Equal(t, []string{"A�B"}, f.Feed([]byte{'A', 0xff, 'B', '\n'}))
}

func TestFramer_Normalization(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		in   string
		want string
	}{
		{"trim", Config{}, "  E001 \n", "E001"},
		{"prefix and suffix", Config{IgnorePrefix: "]C1", IgnoreSuffix: "#"}, "]C1E001#\n", "E001"},
		{"strip ends after prefix", Config{IgnorePrefix: "]C1", StripSpaces: true}, "]C1 E 001\n", "E 001"},
		{"remove inner spaces", Config{RemoveInnerSpaces: true}, "E 0 0 1\n", "E001"},
		{"keep inner spaces", Config{}, "E 001\n", "E 001"},
		{"upper", Config{Case: "upper"}, "e001\n", "E001"},
		{"lower", Config{Case: "LOWER"}, "E001\n", "e001"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, []string{tc.want}, NewFramer(tc.cfg).Feed([]byte(tc.in)))
		})
	}
}

func TestFramer_DropsRunawayBuffer(t *testing.T) {
	f := NewFramer(Config{})
	f.Feed([]byte(strings.Repeat("x", maxFrame+1)))
	assert.Zero(t, f.Pending())
	assert.Equal(t, []string{"OK"}, f.Feed([]byte("OK\n")))
}

func TestFramer_DefaultConfigKeepsInnerSpaces(t *testing.T) {
	f := NewFramer(DefaultConfig())
	assert.Equal(t, []string{"AB 12"}, f.Feed([]byte("  AB 12  \r")))
}

func TestFramer_Reset(t *testing.T) {
	f := NewFramer(Config{})
	assert.Empty(t, f.Feed([]byte("STALE")))
	f.Reset()
	assert.Zero(t, f.Pending())
	assert.Equal(t, []string{"E001"}, f.Feed([]byte("E001\n")))
}
