package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"murmur/history"
	"murmur/model"
	"murmur/orchestrator"
)

type fakeControls struct{ on bool }

func (f *fakeControls) AutoPaste() bool      { return f.on }
func (f *fakeControls) SetAutoPaste(on bool) { f.on = on }

func newTestTUI(c tuiControls) tuiModel {
	m := newTUIModel(c, "ctrl+shift+space", "fake mic")
	base := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return base }
	return m
}

func send(m tuiModel, msg tea.Msg) tuiModel {
	next, _ := m.Update(msg)
	return next.(tuiModel)
}

func TestTUIModeChanges(t *testing.T) {
	m := newTestTUI(nil)
	require.Contains(t, m.statusLine(), "STANDBY")

	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeRecordingHold})
	require.Contains(t, m.statusLine(), "REC")

	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeRecordingLocked})
	require.Contains(t, m.statusLine(), "locked")

	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeTranscribing, Message: "transcribing..."})
	require.Contains(t, m.statusLine(), "TRANSCRIBING")
	require.Equal(t, "transcribing...", m.notice)
	require.False(t, m.noticeErr)
}

func TestTUILevelResetsOutsideRecording(t *testing.T) {
	m := newTestTUI(nil)
	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeRecordingHold})
	m = send(m, updateMsg{Kind: orchestrator.LevelChanged, Level: 0.8})
	require.InDelta(t, 0.4, m.level, 1e-9)
	require.Equal(t, 0.8, m.peak)

	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeIdle})
	require.Zero(t, m.level)
}

func TestTUIErrorNotice(t *testing.T) {
	m := newTestTUI(nil)
	m = send(m, updateMsg{Kind: orchestrator.ModeChanged, Mode: orchestrator.ModeIdle, Message: "microphone unavailable", Err: errors.New("no device")})
	require.True(t, m.noticeErr)
	require.Contains(t, m.View(), "microphone unavailable")
}

func TestTUIKeepsRecentEntries(t *testing.T) {
	m := newTestTUI(nil)
	m = send(m, updateMsg{Kind: orchestrator.Partial, Message: "hel"})
	require.Contains(t, m.View(), "hel")

	for i := 0; i < tuiHistoryRows+2; i++ {
		m = send(m, updateMsg{Kind: orchestrator.Transcribed, Entry: history.Entry{Text: strings.Repeat("x", i+1)}})
	}
	require.Len(t, m.entries, tuiHistoryRows)
	require.Equal(t, strings.Repeat("x", tuiHistoryRows+2), m.entries[0].Text)
	require.Empty(t, m.partial)
}

func TestTUIToggleAutoPaste(t *testing.T) {
	c := &fakeControls{on: true}
	m := newTestTUI(c)
	require.Contains(t, m.View(), "autopaste (on)")

	m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	require.False(t, c.on)
	require.Contains(t, m.View(), "autopaste (off)")
}

func TestTUIQuit(t *testing.T) {
	_, cmd := newTestTUI(nil).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	require.True(t, ok)
}

func TestTUIModelProgress(t *testing.T) {
	m := newTestTUI(nil)
	m = send(m, modelMsg{Phase: model.Downloading, Progress: 0.5})
	require.Contains(t, m.View(), "model: downloading")

	m = send(m, modelMsg{Phase: model.Ready, Progress: 1})
	require.NotContains(t, m.View(), "model:")
}

func TestRenderMeter(t *testing.T) {
	cells := func(s string) (on, off int) {
		return strings.Count(s, "█"), strings.Count(s, "▁")
	}

	on, off := cells(renderMeter(0, 10))
	require.Equal(t, 0, on)
	require.Equal(t, 10, off)

	on, off = cells(renderMeter(0.5, 10))
	require.Equal(t, 5, on)
	require.Equal(t, 5, off)

	on, _ = cells(renderMeter(3, 10))
	require.Equal(t, 10, on)

	on, _ = cells(renderMeter(-1, 10))
	require.Equal(t, 0, on)
}
