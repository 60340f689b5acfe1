package game

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/lox/marbleguess/internal/gameid"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// recordingNotifier captures every published snapshot for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	snapshots []Game
}

func (n *recordingNotifier) Publish(gameID string, g Game) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots = append(n.snapshots, g)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.snapshots)
}

func (n *recordingNotifier) last() Game {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshots[len(n.snapshots)-1]
}

func newTestEngine() (*Engine, *Registry, *recordingNotifier) {
	registry := NewRegistry()
	notifier := &recordingNotifier{}
	engine := NewEngine(registry, notifier, gameid.NewGenerator(nil), testLogger())
	return engine, registry, notifier
}

// startedGame creates and joins a game, returning it in its initial
// in-progress state: stakes 10/10, alice to hide.
func startedGame(t *testing.T, e *Engine) Game {
	t.Helper()

	g, err := e.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	g, err = e.Join(g.ID, "bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	return g
}

func checkStakes(t *testing.T, g Game) {
	t.Helper()
	if g.Stake1+g.Stake2 != TotalMarbles {
		t.Errorf("stake invariant broken: %d + %d != %d", g.Stake1, g.Stake2, TotalMarbles)
	}
}

func TestCreate(t *testing.T) {
	e, _, notifier := newTestEngine()

	g, err := e.Create("alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if g.Status != StatusNew {
		t.Errorf("expected status NEW, got %s", g.Status)
	}
	if g.Player1 != "alice" {
		t.Errorf("expected player1 alice, got %q", g.Player1)
	}
	if g.Player2 != "" {
		t.Errorf("expected no player2, got %q", g.Player2)
	}
	if g.Turn != TurnPlayer1 || g.Move != MoveHide {
		t.Errorf("expected PLAYER_1/HIDE, got %s/%s", g.Turn, g.Move)
	}
	if err := gameid.Validate(g.ID); err != nil {
		t.Errorf("invalid game id: %v", err)
	}
	if notifier.count() != 0 {
		t.Errorf("create should not broadcast, got %d messages", notifier.count())
	}
}

func TestCreateMissingIdentity(t *testing.T) {
	e, _, _ := newTestEngine()

	_, err := e.Create("")
	if KindOf(err) != KindMissingIdentity {
		t.Errorf("expected missing_identity, got %v", err)
	}
}

func TestJoin(t *testing.T) {
	e, _, notifier := newTestEngine()

	g := startedGame(t, e)

	if g.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", g.Status)
	}
	if g.Player2 != "bob" {
		t.Errorf("expected player2 bob, got %q", g.Player2)
	}
	if g.Stake1 != InitialStake || g.Stake2 != InitialStake {
		t.Errorf("expected stakes %d/%d, got %d/%d", InitialStake, InitialStake, g.Stake1, g.Stake2)
	}
	if g.Turn != TurnPlayer1 || g.Move != MoveHide {
		t.Errorf("expected PLAYER_1/HIDE, got %s/%s", g.Turn, g.Move)
	}
	if notifier.count() != 1 {
		t.Errorf("expected 1 broadcast after join, got %d", notifier.count())
	}
	checkStakes(t, g)
}

func TestJoinAlreadyInProgress(t *testing.T) {
	e, _, _ := newTestEngine()

	g := startedGame(t, e)

	_, err := e.Join(g.ID, "carol")
	if KindOf(err) != KindAlreadyInProgress {
		t.Errorf("expected already_in_progress, got %v", err)
	}
}

func TestJoinNotFound(t *testing.T) {
	e, _, _ := newTestEngine()

	_, err := e.Join("0000000000000000000000000a", "bob")
	if KindOf(err) != KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestHide(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	g, err := e.Hide(g.ID, "alice", 3)
	if err != nil {
		t.Fatalf("Hide failed: %v", err)
	}

	if g.Hidden != 3 {
		t.Errorf("expected hidden 3, got %d", g.Hidden)
	}
	if g.Turn != TurnPlayer2 {
		t.Errorf("turn must flip after hide, got %s", g.Turn)
	}
	if g.Move != MoveBet {
		t.Errorf("expected move BET, got %s", g.Move)
	}
	checkStakes(t, g)
}

func TestHideWrongTurn(t *testing.T) {
	e, _, notifier := newTestEngine()
	g := startedGame(t, e)

	before, _ := e.Get(g.ID)
	published := notifier.count()

	_, err := e.Hide(g.ID, "bob", 5)
	if KindOf(err) != KindWrongTurn {
		t.Fatalf("expected wrong_turn, got %v", err)
	}
	if !strings.Contains(err.Error(), "alice") {
		t.Errorf("wrong turn error must name the expected player, got %q", err.Error())
	}

	// State unchanged, nothing broadcast.
	after, _ := e.Get(g.ID)
	if after != before {
		t.Errorf("state changed on failed action: %+v != %+v", after, before)
	}
	if notifier.count() != published {
		t.Errorf("failed action must not broadcast")
	}
}

func TestHideQuantityBounds(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  Kind
	}{
		{"zero", 0, KindInvalidQuantity},
		{"negative", -2, KindInvalidQuantity},
		{"exceeds stake", InitialStake + 1, KindInvalidQuantity},
		{"full stake ok", InitialStake, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine()
			g := startedGame(t, e)

			_, err := e.Hide(g.ID, "alice", tt.count)
			if KindOf(err) != tt.want {
				t.Errorf("Hide(%d) error = %v, want kind %q", tt.count, err, tt.want)
			}
		})
	}
}

func TestBet(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	g, err := e.Hide(g.ID, "alice", 3)
	if err != nil {
		t.Fatalf("Hide failed: %v", err)
	}
	g, err = e.Bet(g.ID, "bob", 4)
	if err != nil {
		t.Fatalf("Bet failed: %v", err)
	}

	if g.Bet != 4 {
		t.Errorf("expected bet 4, got %d", g.Bet)
	}
	if g.Move != MoveGuess {
		t.Errorf("expected move GUESS, got %s", g.Move)
	}
	if g.Turn != TurnPlayer2 {
		t.Errorf("turn must not change on bet, got %s", g.Turn)
	}
}

func TestBetWrongMove(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	// A bet before any hide is out of order.
	_, err := e.Bet(g.ID, "alice", 4)
	if KindOf(err) != KindWrongMove {
		t.Errorf("expected wrong_move, got %v", err)
	}
}

func TestGuessCorrect(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	mustHide(t, e, g.ID, "alice", 3)
	mustBet(t, e, g.ID, "bob", 4)

	g, err := e.Guess(g.ID, "bob", GuessOdd)
	if err != nil {
		t.Fatalf("Guess failed: %v", err)
	}

	// 3 is odd: bob wins the 4-marble bet from alice.
	if g.Stake1 != 6 || g.Stake2 != 14 {
		t.Errorf("expected stakes 6/14, got %d/%d", g.Stake1, g.Stake2)
	}
	if g.Move != MoveHide || g.Hidden != 0 || g.Bet != 0 {
		t.Errorf("round must reset: move=%s hidden=%d bet=%d", g.Move, g.Hidden, g.Bet)
	}
	if g.Status != StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", g.Status)
	}
	checkStakes(t, g)
}

func TestGuessIncorrect(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	mustHide(t, e, g.ID, "alice", 3)
	mustBet(t, e, g.ID, "bob", 4)

	g, err := e.Guess(g.ID, "bob", GuessEven)
	if err != nil {
		t.Fatalf("Guess failed: %v", err)
	}

	// 3 is odd: bob loses the hidden count, not the bet.
	if g.Stake1 != 13 || g.Stake2 != 7 {
		t.Errorf("expected stakes 13/7, got %d/%d", g.Stake1, g.Stake2)
	}
	checkStakes(t, g)
}

func TestGuessTurnRetained(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	mustHide(t, e, g.ID, "alice", 3)
	mustBet(t, e, g.ID, "bob", 2)
	g, err := e.Guess(g.ID, "bob", GuessOdd)
	if err != nil {
		t.Fatalf("Guess failed: %v", err)
	}

	// The turn does not reset after a round: bob, who took the turn when
	// alice hid, hides next.
	if g.Turn != TurnPlayer2 {
		t.Errorf("expected bob to keep the turn, got %s", g.Turn)
	}
	if g.Move != MoveHide {
		t.Errorf("expected move HIDE, got %s", g.Move)
	}

	if _, err := e.Hide(g.ID, "bob", 5); err != nil {
		t.Errorf("bob should hide next round: %v", err)
	}
}

func TestGuessEndsGame(t *testing.T) {
	e, registry, notifier := newTestEngine()
	g := startedGame(t, e)

	// Alice is nearly bust: any losing transfer larger than her stake ends
	// the match.
	seeded := g
	seeded.Stake1 = 2
	seeded.Stake2 = 18
	registry.Add(seeded)

	mustHide(t, e, g.ID, "alice", 1)
	mustBet(t, e, g.ID, "bob", 5)
	g, err := e.Guess(g.ID, "bob", GuessOdd)
	if err != nil {
		t.Fatalf("Guess failed: %v", err)
	}

	if g.Status != StatusEnded {
		t.Fatalf("expected ENDED, got %s", g.Status)
	}
	if g.Winner != "bob" {
		t.Errorf("expected winner bob, got %q", g.Winner)
	}
	// Terminal normalization regardless of the transferred amount.
	if g.Stake1 != 0 || g.Stake2 != TotalMarbles {
		t.Errorf("expected stakes 0/%d, got %d/%d", TotalMarbles, g.Stake1, g.Stake2)
	}
	if notifier.last().Status != StatusEnded {
		t.Errorf("terminal snapshot must be broadcast")
	}
}

func TestNoActionsAfterEnded(t *testing.T) {
	e, registry, _ := newTestEngine()
	g := startedGame(t, e)

	seeded := g
	seeded.Status = StatusEnded
	seeded.Winner = "bob"
	seeded.Stake1 = 0
	seeded.Stake2 = TotalMarbles
	registry.Add(seeded)

	if _, err := e.Hide(g.ID, "alice", 1); KindOf(err) != KindInvalidState {
		t.Errorf("hide after end: expected invalid_state, got %v", err)
	}
	if _, err := e.Bet(g.ID, "bob", 1); KindOf(err) != KindInvalidState {
		t.Errorf("bet after end: expected invalid_state, got %v", err)
	}
	if _, err := e.Guess(g.ID, "bob", GuessOdd); KindOf(err) != KindInvalidState {
		t.Errorf("guess after end: expected invalid_state, got %v", err)
	}
}

func TestRestartRoundTrip(t *testing.T) {
	e, registry, _ := newTestEngine()
	g := startedGame(t, e)
	joined, _ := e.Get(g.ID)

	seeded := g
	seeded.Status = StatusEnded
	seeded.Winner = "bob"
	seeded.Stake1 = 0
	seeded.Stake2 = TotalMarbles
	seeded.Turn = TurnPlayer2
	seeded.Move = MoveGuess
	seeded.Hidden = 3
	seeded.Bet = 2
	registry.Add(seeded)

	restarted, err := e.Restart(g.ID, "alice")
	if err != nil {
		t.Fatalf("Restart failed: %v", err)
	}

	if restarted != joined {
		t.Errorf("restart must restore the freshly joined state:\n got %+v\nwant %+v", restarted, joined)
	}
}

func TestRestartNotAParticipant(t *testing.T) {
	e, _, _ := newTestEngine()
	g := startedGame(t, e)

	_, err := e.Restart(g.ID, "mallory")
	if KindOf(err) != KindNotAParticipant {
		t.Errorf("expected not_a_participant, got %v", err)
	}
}

func TestQuit(t *testing.T) {
	e, registry, notifier := newTestEngine()
	g := startedGame(t, e)

	final, err := e.Quit(g.ID, "bob")
	if err != nil {
		t.Fatalf("Quit failed: %v", err)
	}

	if final.Status != StatusEnded {
		t.Errorf("expected ENDED, got %s", final.Status)
	}
	if final.Winner != "" {
		t.Errorf("quit must not declare a winner, got %q", final.Winner)
	}
	if _, ok := registry.Get(g.ID); ok {
		t.Errorf("quit must remove the game from the registry")
	}
	// The terminal snapshot is still broadcast after removal.
	if last := notifier.last(); last.ID != g.ID || last.Status != StatusEnded {
		t.Errorf("expected terminal broadcast for %s, got %+v", g.ID, last)
	}

	// Follow-up actions see a missing game.
	if _, err := e.Hide(g.ID, "alice", 1); KindOf(err) != KindNotFound {
		t.Errorf("expected not_found after quit, got %v", err)
	}
}

func TestQuitNotAParticipant(t *testing.T) {
	e, registry, _ := newTestEngine()
	g := startedGame(t, e)

	_, err := e.Quit(g.ID, "mallory")
	if KindOf(err) != KindNotAParticipant {
		t.Errorf("expected not_a_participant, got %v", err)
	}
	if _, ok := registry.Get(g.ID); !ok {
		t.Errorf("failed quit must not remove the game")
	}
}

func TestStakeConservationOverRounds(t *testing.T) {
	e, _, notifier := newTestEngine()
	g := startedGame(t, e)

	hider, guesser := "alice", "bob"
	guesses := []Guess{GuessOdd, GuessEven, GuessEven, GuessOdd}
	for i, guess := range guesses {
		if _, err := e.Hide(g.ID, hider, 1+i%3); err != nil {
			t.Fatalf("round %d hide: %v", i, err)
		}
		if _, err := e.Bet(g.ID, guesser, 1+i%2); err != nil {
			t.Fatalf("round %d bet: %v", i, err)
		}
		after, err := e.Guess(g.ID, guesser, guess)
		if err != nil {
			t.Fatalf("round %d guess: %v", i, err)
		}
		if after.Status == StatusEnded {
			break
		}
		checkStakes(t, after)

		// Roles for the next round follow the retained turn.
		hider = after.PlayerFor(after.Turn)
		guesser = after.PlayerFor(after.Turn.Other())
	}

	// Every broadcast snapshot honors the invariant too.
	for _, snap := range notifier.snapshots {
		if snap.Status != StatusEnded {
			checkStakes(t, snap)
		}
	}
}

func TestIsCorrectGuess(t *testing.T) {
	tests := []struct {
		hidden int
		guess  Guess
		want   bool
	}{
		{1, GuessOdd, true},
		{1, GuessEven, false},
		{2, GuessEven, true},
		{2, GuessOdd, false},
		{3, GuessOdd, true},
		{10, GuessEven, true},
	}

	for _, tt := range tests {
		got := isCorrectGuess(tt.hidden, tt.guess)
		if got != tt.want {
			t.Errorf("isCorrectGuess(%d, %s) = %v, want %v", tt.hidden, tt.guess, got, tt.want)
		}
		// Deterministic: asking again gives the same answer.
		if isCorrectGuess(tt.hidden, tt.guess) != got {
			t.Errorf("isCorrectGuess(%d, %s) not deterministic", tt.hidden, tt.guess)
		}
	}
}

func TestListAndGet(t *testing.T) {
	e, _, _ := newTestEngine()

	g1, _ := e.Create("alice")
	g2, _ := e.Create("carol")

	games := e.List()
	if len(games) != 2 {
		t.Fatalf("expected 2 games, got %d", len(games))
	}

	got, ok := e.Get(g1.ID)
	if !ok || got.Player1 != "alice" {
		t.Errorf("Get(%s) = %+v, %v", g1.ID, got, ok)
	}
	if _, ok := e.Get(g2.ID); !ok {
		t.Errorf("Get(%s) missed", g2.ID)
	}
}

func mustHide(t *testing.T, e *Engine, id, player string, count int) {
	t.Helper()
	if _, err := e.Hide(id, player, count); err != nil {
		t.Fatalf("Hide(%s, %d) failed: %v", player, count, err)
	}
}

func mustBet(t *testing.T, e *Engine, id, player string, count int) {
	t.Helper()
	if _, err := e.Bet(id, player, count); err != nil {
		t.Fatalf("Bet(%s, %d) failed: %v", player, count, err)
	}
}
