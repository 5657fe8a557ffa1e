package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	th := DefaultTapThreshold
	tests := []struct {
		name       string
		from       Mode
		in         Input
		wantMode   Mode
		wantAction Action
	}{
		{"idle_down_ready", ModeIdle, Input{Trigger: TriggerKeyDown, ModelReady: true}, ModeRecordingHold, ActionStartCapture},
		{"idle_down_not_ready", ModeIdle, Input{Trigger: TriggerKeyDown}, ModeIdle, ActionModelNotReady},
		{"idle_up", ModeIdle, Input{Trigger: TriggerKeyUp, ModelReady: true}, ModeIdle, ActionNone},
		{"idle_stale_result", ModeIdle, Input{Trigger: TriggerResult, HasText: true}, ModeIdle, ActionNone},
		{"hold_tap", ModeRecordingHold, Input{Trigger: TriggerKeyUp, Held: 100 * time.Millisecond, Threshold: th}, ModeRecordingLocked, ActionLock},
		{"hold_just_under", ModeRecordingHold, Input{Trigger: TriggerKeyUp, Held: th - time.Millisecond, Threshold: th}, ModeRecordingLocked, ActionLock},
		{"hold_at_threshold", ModeRecordingHold, Input{Trigger: TriggerKeyUp, Held: th, Threshold: th}, ModeTranscribing, ActionSubmit},
		{"hold_long", ModeRecordingHold, Input{Trigger: TriggerKeyUp, Held: 600 * time.Millisecond, Threshold: th}, ModeTranscribing, ActionSubmit},
		{"hold_repeat_down", ModeRecordingHold, Input{Trigger: TriggerKeyDown, ModelReady: true}, ModeRecordingHold, ActionNone},
		{"locked_down", ModeRecordingLocked, Input{Trigger: TriggerKeyDown}, ModeTranscribing, ActionSubmit},
		{"locked_up", ModeRecordingLocked, Input{Trigger: TriggerKeyUp, Held: time.Second, Threshold: th}, ModeRecordingLocked, ActionNone},
		{"transcribing_down", ModeTranscribing, Input{Trigger: TriggerKeyDown, ModelReady: true}, ModeTranscribing, ActionNone},
		{"transcribing_up", ModeTranscribing, Input{Trigger: TriggerKeyUp}, ModeTranscribing, ActionNone},
		{"result_text", ModeTranscribing, Input{Trigger: TriggerResult, HasText: true}, ModeIdle, ActionDeliver},
		{"result_empty", ModeTranscribing, Input{Trigger: TriggerResult}, ModeIdle, ActionDiscard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, action := Next(tt.from, tt.in)
			require.Equal(t, tt.wantMode, mode)
			require.Equal(t, tt.wantAction, action)
		})
	}
}

func TestNextCustomThreshold(t *testing.T) {
	in := Input{Trigger: TriggerKeyUp, Held: 300 * time.Millisecond, Threshold: 250 * time.Millisecond}
	mode, _ := Next(ModeRecordingHold, in)
	require.Equal(t, ModeTranscribing, mode)
}

// Every mode/trigger pair lands in a known mode and only recording modes
// come out of a capture start.
func TestNextIsTotal(t *testing.T) {
	modes := []Mode{ModeIdle, ModeRecordingHold, ModeRecordingLocked, ModeTranscribing}
	triggers := []Trigger{TriggerKeyDown, TriggerKeyUp, TriggerResult}
	for _, m := range modes {
		for _, tr := range triggers {
			for _, ready := range []bool{false, true} {
				next, action := Next(m, Input{Trigger: tr, ModelReady: ready, Threshold: DefaultTapThreshold})
				require.Contains(t, modes, next)
				if action == ActionStartCapture {
					require.True(t, next.Recording())
				}
				if action == ActionSubmit {
					require.True(t, m.Recording())
				}
			}
		}
	}
}

func TestActionString(t *testing.T) {
	require.Equal(t, "submit", ActionSubmit.String())
	require.Equal(t, "unknown", Action(99).String())
}
