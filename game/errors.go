package game

import (
	"errors"
	"fmt"

	"github.com/COAOX/zecrey_battleship/model"
)

// Code is a stable, enumerable reason attached to every rejected action.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeGameFull           Code = "GAME_FULL"
	CodeWrongPhase         Code = "WRONG_PHASE"
	CodeNotYourTurn        Code = "NOT_YOUR_TURN"
	CodeNotParticipant     Code = "NOT_PARTICIPANT"
	CodeNoOpponent         Code = "NO_OPPONENT"
	CodeInvalidComposition Code = "INVALID_COMPOSITION"
	CodeOutOfBounds        Code = "OUT_OF_BOUNDS"
	CodeOverlap            Code = "OVERLAP"
	CodeAlreadyPlaced      Code = "ALREADY_PLACED"
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInternal           Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "game not found"}
	ErrGameFull           = &Error{Code: CodeGameFull, Message: "game is full"}
	ErrWrongPhase         = &Error{Code: CodeWrongPhase, Message: "action not allowed in the current phase"}
	ErrNotYourTurn        = &Error{Code: CodeNotYourTurn, Message: "not your turn"}
	ErrNotParticipant     = &Error{Code: CodeNotParticipant, Message: "player is not part of this game"}
	ErrNoOpponent         = &Error{Code: CodeNoOpponent, Message: "opponent cannot be resolved"}
	ErrInvalidComposition = &Error{Code: CodeInvalidComposition, Message: "invalid fleet composition"}
	ErrOutOfBounds        = &Error{Code: CodeOutOfBounds, Message: "out of bounds"}
	ErrOverlap            = &Error{Code: CodeOverlap, Message: "ships overlap"}
	ErrAlreadyPlaced      = &Error{Code: CodeAlreadyPlaced, Message: "fleet already placed"}
	ErrInvalidInput       = &Error{Code: CodeInvalidInput, Message: "invalid input"}
)

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func invalidComposition(t model.ShipType, expected, actual int) *Error {
	return newError(CodeInvalidComposition, "fleet needs %d %s, got %d", expected, t, actual)
}

func outOfBounds(s model.Ship) *Error {
	return newError(CodeOutOfBounds, "%s at (%d,%d) %s leaves the board", s.Type, s.X, s.Y, s.Orientation)
}

func overlap(c model.Cell) *Error {
	return newError(CodeOverlap, "ships overlap at (%d,%d)", c.X, c.Y)
}

func wrongPhase(status model.GameStatus) *Error {
	return newError(CodeWrongPhase, "action not allowed while game is %s", status)
}

// CodeOf returns the reason code carried by err, or CodeInternal for
// collaborator and unexpected failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRejection reports whether err is a validation or state error the caller can act on,
// as opposed to a collaborator failure.
func IsRejection(err error) bool {
	return CodeOf(err) != CodeInternal
}
