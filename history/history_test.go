package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewestFirst(t *testing.T) {
	h := New(DefaultCapacity)
	h.Add("first")
	h.Add("second")

	got := h.Entries()
	require.Len(t, got, 2)
	require.Equal(t, "second", got[0].Text)
	require.Equal(t, "first", got[1].Text)

	latest, ok := h.Latest()
	require.True(t, ok)
	require.Equal(t, "second", latest.Text)
}

func TestCapacityEvictsOldest(t *testing.T) {
	h := New(DefaultCapacity)
	for i := 1; i <= 11; i++ {
		h.Add(fmt.Sprintf("entry %d", i))
		require.LessOrEqual(t, h.Len(), DefaultCapacity)
	}

	got := h.Entries()
	require.Len(t, got, DefaultCapacity)
	require.Equal(t, "entry 11", got[0].Text)
	require.Equal(t, "entry 2", got[len(got)-1].Text)
	for _, e := range got {
		require.NotEqual(t, "entry 1", e.Text)
	}
}

func TestEntriesIsACopy(t *testing.T) {
	h := New(3)
	h.Add("a")
	got := h.Entries()
	got[0].Text = "mutated"
	latest, _ := h.Latest()
	require.Equal(t, "a", latest.Text)
}

func TestUniqueIDs(t *testing.T) {
	h := New(3)
	a := h.Add("same")
	b := h.Add("same")
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.CreatedAt.IsZero())
}

func TestPreview(t *testing.T) {
	short := Entry{Text: "short text"}
	require.Equal(t, "short text", short.Preview())

	long := Entry{Text: strings.Repeat("é", 60)}
	require.Equal(t, strings.Repeat("é", 50)+"...", long.Preview())
}

func TestEmpty(t *testing.T) {
	h := New(0)
	_, ok := h.Latest()
	require.False(t, ok)
	require.Empty(t, h.Entries())
	h.Add("x")
	h.Clear()
	require.Zero(t, h.Len())
}
