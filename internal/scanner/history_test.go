package scanner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(HistorySize)
	_, ok := h.Latest()
	assert.False(t, ok)

	base := time.Now()
	for i := 1; i <= 7; i++ {
		h.Push(Scan{Code: fmt.Sprintf("C%d", i), ScannedAt: base.Add(time.Duration(i) * time.Second)})
	}

	snap := h.Snapshot()
	require.Len(t, snap, HistorySize)
	codes := make([]string, 0, len(snap))
	for _, s := range snap {
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"C7", "C6", "C5", "C4", "C3"}, codes)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "C7", latest.Code)
}

func TestHistory_SnapshotIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Push(Scan{Code: "A"})
	snap := h.Snapshot()
	snap[0].Code = "mutated"

	latest, _ := h.Latest()
	assert.Equal(t, "A", latest.Code)
}
