package game

import (
	"fmt"

	"github.com/jason-s-yu/zing/internal/engine"
)

// Mode is the table format.
type Mode string

const (
	Mode1v1 Mode = "1v1"
	Mode2v2 Mode = "2v2"
)

// Seats returns the number of players the mode needs, or 0 for an unknown mode.
func (m Mode) Seats() int {
	switch m {
	case Mode1v1:
		return 2
	case Mode2v2:
		return 4
	}
	return 0
}

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if m.Seats() == 0 {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Phase of the room lifecycle.
type Phase string

const (
	PhaseEmpty         Phase = "empty"
	PhaseForming       Phase = "forming"
	PhaseInRound       Phase = "in_round"
	PhaseBetweenRounds Phase = "between_rounds"
	PhaseMatchOver     Phase = "match_over"
	PhaseClosed        Phase = "closed"
)

// Settings are chosen when the room is created. Only TimerEnabled can change later.
type Settings struct {
	Mode         Mode       `json:"mode"`
	Visibility   Visibility `json:"visibility"`
	AccessCode   string     `json:"-"`
	TimerEnabled bool       `json:"timerEnabled"`
	TargetScore  int        `json:"targetScore"`
}

func (s *Settings) applyDefaults() {
	if s.Mode == "" {
		s.Mode = Mode1v1
	}
	if s.Visibility == "" {
		s.Visibility = VisibilityPublic
	}
	if s.TargetScore <= 0 {
		s.TargetScore = engine.DefaultTargetScore
	}
}
