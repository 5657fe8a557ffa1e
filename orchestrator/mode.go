package orchestrator

import "time"

type Mode string

const (
	ModeIdle            Mode = "idle"
	ModeRecordingHold   Mode = "recording_hold"
	ModeRecordingLocked Mode = "recording_locked"
	ModeTranscribing    Mode = "transcribing"
)

// Recording reports whether capture must be running in this mode.
func (m Mode) Recording() bool {
	return m == ModeRecordingHold || m == ModeRecordingLocked
}

type Trigger string

const (
	TriggerKeyDown Trigger = "key_down"
	TriggerKeyUp   Trigger = "key_up"
	TriggerResult  Trigger = "result"
)

// Action is the side effect the loop performs for a transition.
type Action int

const (
	ActionNone Action = iota
	ActionStartCapture
	ActionModelNotReady
	ActionLock
	ActionSubmit
	ActionDeliver
	ActionDiscard
)

var actionNames = map[Action]string{
	ActionNone:          "none",
	ActionStartCapture:  "start_capture",
	ActionModelNotReady: "model_not_ready",
	ActionLock:          "lock",
	ActionSubmit:        "submit",
	ActionDeliver:       "deliver",
	ActionDiscard:       "discard",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// Input carries everything a transition guard may look at.
type Input struct {
	Trigger    Trigger
	ModelReady bool
	Held       time.Duration // press duration, for TriggerKeyUp
	Threshold  time.Duration
	HasText    bool // result carried non-empty text and no error
}

// Next is the transition table. It has no side effects; the caller
// performs the returned action and may fall back to ModeIdle if that
// action fails.
func Next(mode Mode, in Input) (Mode, Action) {
	switch mode {
	case ModeIdle:
		if in.Trigger == TriggerKeyDown {
			if !in.ModelReady {
				return ModeIdle, ActionModelNotReady
			}
			return ModeRecordingHold, ActionStartCapture
		}
	case ModeRecordingHold:
		if in.Trigger == TriggerKeyUp {
			if in.Held < in.Threshold {
				return ModeRecordingLocked, ActionLock
			}
			return ModeTranscribing, ActionSubmit
		}
	case ModeRecordingLocked:
		if in.Trigger == TriggerKeyDown {
			return ModeTranscribing, ActionSubmit
		}
	case ModeTranscribing:
		if in.Trigger == TriggerResult {
			if in.HasText {
				return ModeIdle, ActionDeliver
			}
			return ModeIdle, ActionDiscard
		}
	}
	return mode, ActionNone
}
