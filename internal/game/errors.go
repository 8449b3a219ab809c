// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ReasonCode is the stable, client-facing name of a refused room operation.
type ReasonCode string

const (
	ReasonNotYourTurn           ReasonCode = "not_your_turn"
	ReasonCardNotInHand         ReasonCode = "card_not_in_hand"
	ReasonUnknownPlayer         ReasonCode = "unknown_player"
	ReasonInvalidPlayerCount    ReasonCode = "invalid_player_count"
	ReasonModeMismatch          ReasonCode = "mode_mismatch"
	ReasonNotHost               ReasonCode = "not_host"
	ReasonMissingTeamAssignment ReasonCode = "missing_team_assignment"
	ReasonRoomFull              ReasonCode = "room_full"
	ReasonBadAccessCode         ReasonCode = "bad_access_code"
	ReasonAlreadyStarted        ReasonCode = "already_started"
	ReasonNotInRound            ReasonCode = "not_in_round"
	ReasonMatchOver             ReasonCode = "match_over"
	ReasonInvalidToken          ReasonCode = "invalid_token"
	ReasonNotAMember            ReasonCode = "not_a_member"
	ReasonRoomClosed            ReasonCode = "room_closed"
)

// RoomError is returned for every refused command. Callers surface Code, never Err.
type RoomError struct {
	Code ReasonCode
	Err  error
}

func (e *RoomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *RoomError) Unwrap() error { return e.Err }

func refuse(code ReasonCode) *RoomError { return &RoomError{Code: code} }

// ReasonOf extracts the reason code from err, or "" if err is not a RoomError.
func ReasonOf(err error) ReasonCode {
	var re *RoomError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
