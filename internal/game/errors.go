package game

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure. Kinds are stable wire codes: the API
// boundary maps them to transport-level responses and clients key UI
// messaging off them.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindWrongMove         Kind = "wrong_move"
	KindWrongTurn         Kind = "wrong_turn"
	KindInvalidQuantity   Kind = "invalid_quantity"
	KindAlreadyInProgress Kind = "already_in_progress"
	KindNotAParticipant   Kind = "not_a_participant"
	KindMissingIdentity   Kind = "missing_identity"
)

// Error is a recoverable, caller-facing validation failure. The engine never
// mutates state before returning one.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf extracts the Kind from an error, or "" if err is not a game error.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func errNotFound(id string) *Error {
	return newError(KindNotFound, "no game with id %s", id)
}

func errInvalidState(g *Game) *Error {
	return newError(KindInvalidState, "game %s is %s, actions require an in-progress game", g.ID, g.Status)
}

func errWrongMove(g *Game, requested Move) *Error {
	return newError(KindWrongMove, "expected a %s, got a %s", g.Move, requested)
}

func errWrongTurn(g *Game) *Error {
	return newError(KindWrongTurn, "it is %s's turn", g.PlayerFor(g.Turn))
}

func errInvalidQuantity(count, stake int) *Error {
	return newError(KindInvalidQuantity, "count must be between 1 and %d, got %d", stake, count)
}

func errAlreadyInProgress(id string) *Error {
	return newError(KindAlreadyInProgress, "game %s already has two players", id)
}

func errNotAParticipant(id, player string) *Error {
	return newError(KindNotAParticipant, "%s is not playing in game %s", player, id)
}

func errMissingIdentity() *Error {
	return newError(KindMissingIdentity, "player identity required")
}
