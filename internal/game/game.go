package game

import (
	"encoding/json"
	"fmt"
)

const (
	// TotalMarbles is the number of marbles in play across both stakes.
	TotalMarbles = 20

	// InitialStake is each player's stake when a match begins.
	InitialStake = TotalMarbles / 2
)

// Status represents the lifecycle state of a game.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusEnded      Status = "ENDED"
)

// ParseStatus converts a wire string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusInProgress, StatusEnded:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status: %q", s)
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Turn identifies which player is expected to act next.
type Turn string

const (
	TurnPlayer1 Turn = "PLAYER_1"
	TurnPlayer2 Turn = "PLAYER_2"
)

// Other returns the opposing turn.
func (t Turn) Other() Turn {
	if t == TurnPlayer1 {
		return TurnPlayer2
	}
	return TurnPlayer1
}

// ParseTurn converts a wire string into a Turn, rejecting unknown values.
func ParseTurn(s string) (Turn, error) {
	switch Turn(s) {
	case TurnPlayer1, TurnPlayer2:
		return Turn(s), nil
	}
	return "", fmt.Errorf("unknown turn: %q", s)
}

func (t *Turn) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTurn(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Move is the category of action the game expects next.
type Move string

const (
	MoveHide  Move = "HIDE"
	MoveBet   Move = "BET"
	MoveGuess Move = "GUESS"
)

// ParseMove converts a wire string into a Move, rejecting unknown values.
func ParseMove(s string) (Move, error) {
	switch Move(s) {
	case MoveHide, MoveBet, MoveGuess:
		return Move(s), nil
	}
	return "", fmt.Errorf("unknown move: %q", s)
}

func (m *Move) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseMove(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Guess is a parity wager on the hidden marble count.
type Guess string

const (
	GuessOdd  Guess = "ODD"
	GuessEven Guess = "EVEN"
)

// ParseGuess converts a wire string into a Guess, rejecting unknown values.
func ParseGuess(s string) (Guess, error) {
	switch Guess(s) {
	case GuessOdd, GuessEven:
		return Guess(s), nil
	}
	return "", fmt.Errorf("unknown guess: %q", s)
}

func (g *Guess) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseGuess(raw)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Game is the authoritative state of one match. Values are plain data; all
// mutation goes through the Engine so that the Registry's concurrency
// contract holds.
type Game struct {
	ID      string `json:"id"`
	Status  Status `json:"status"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2,omitempty"`
	Stake1  int    `json:"stake1"`
	Stake2  int    `json:"stake2"`
	Turn    Turn   `json:"turn"`
	Move    Move   `json:"move"`
	Hidden  int    `json:"hidden"`
	Bet     int    `json:"bet"`
	Winner  string `json:"winner,omitempty"`
}

// PlayerFor returns the identity bound to the given turn.
func (g *Game) PlayerFor(t Turn) string {
	if t == TurnPlayer1 {
		return g.Player1
	}
	return g.Player2
}

// StakeFor returns the stake held by the player bound to the given turn.
func (g *Game) StakeFor(t Turn) int {
	if t == TurnPlayer1 {
		return g.Stake1
	}
	return g.Stake2
}

func (g *Game) setStake(t Turn, n int) {
	if t == TurnPlayer1 {
		g.Stake1 = n
	} else {
		g.Stake2 = n
	}
}

func (g *Game) addStake(t Turn, n int) {
	g.setStake(t, g.StakeFor(t)+n)
}

// IsParticipant reports whether player is one of the two participants.
func (g *Game) IsParticipant(player string) bool {
	return player != "" && (player == g.Player1 || player == g.Player2)
}
