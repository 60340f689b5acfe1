package game

import (
	"github.com/charmbracelet/log"

	"github.com/lox/marbleguess/internal/gameid"
)

// Notifier pushes post-mutation snapshots to whoever is watching a game's
// channel. Delivery is best-effort and fire-and-forget: failures are never
// surfaced back to the engine.
type Notifier interface {
	Publish(gameID string, g Game)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(gameID string, g Game)

func (f NotifierFunc) Publish(gameID string, g Game) { f(gameID, g) }

// Engine implements the game rules. It validates every action against the
// registry's current state, applies the transition, and broadcasts the
// result. Validation is all-or-nothing: no partial mutation ever precedes a
// failure.
type Engine struct {
	registry *Registry
	notifier Notifier
	ids      *gameid.Generator
	logger   *log.Logger
}

// NewEngine constructs an engine around an explicitly provided registry and
// notifier. There is no ambient global state; callers own the lifecycle of
// both collaborators.
func NewEngine(registry *Registry, notifier Notifier, ids *gameid.Generator, logger *log.Logger) *Engine {
	return &Engine{
		registry: registry,
		notifier: notifier,
		ids:      ids,
		logger:   logger.WithPrefix("engine"),
	}
}

// List returns a snapshot of every stored game.
func (e *Engine) List() []Game {
	return e.registry.All()
}

// Get looks up a single game by id.
func (e *Engine) Get(id string) (Game, bool) {
	return e.registry.Get(id)
}

// Create allocates a new game with player1 seated and stores it. The game
// waits in NEW status until a second player joins.
func (e *Engine) Create(player1 string) (Game, error) {
	if player1 == "" {
		return Game{}, errMissingIdentity()
	}

	g := Game{
		ID:      e.ids.Generate(),
		Status:  StatusNew,
		Player1: player1,
		Turn:    TurnPlayer1,
		Move:    MoveHide,
	}
	e.registry.Add(g)

	e.logger.Info("game created", "game", g.ID, "player1", player1)
	return g, nil
}

// Join seats player2 and starts the match: both stakes are initialized and
// the game moves to IN_PROGRESS. Only NEW games can be joined.
func (e *Engine) Join(id, player2 string) (Game, error) {
	if player2 == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Update(id, func(g *Game) error {
		if g.Status != StatusNew {
			return errAlreadyInProgress(g.ID)
		}
		g.Player2 = player2
		g.Status = StatusInProgress
		g.Stake1 = InitialStake
		g.Stake2 = InitialStake
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	e.logger.Info("player joined", "game", g.ID, "player2", player2)
	e.publish(g)
	return g, nil
}

// Hide conceals count marbles for the current hider. The turn flips to the
// opponent, who must bet next.
func (e *Engine) Hide(id, player string, count int) (Game, error) {
	if player == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Update(id, func(g *Game) error {
		if err := validateAction(g, MoveHide, player, &count); err != nil {
			return err
		}
		g.Hidden = count
		g.Turn = g.Turn.Other()
		g.Move = MoveBet
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	e.logger.Debug("marbles hidden", "game", g.ID, "player", player)
	e.publish(g)
	return g, nil
}

// Bet wagers count marbles for the current guesser. The same player then
// guesses; the turn does not change.
func (e *Engine) Bet(id, player string, count int) (Game, error) {
	if player == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Update(id, func(g *Game) error {
		if err := validateAction(g, MoveBet, player, &count); err != nil {
			return err
		}
		g.Bet = count
		g.Move = MoveGuess
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	e.logger.Debug("bet placed", "game", g.ID, "player", player, "bet", g.Bet)
	e.publish(g)
	return g, nil
}

// Guess resolves the round. A correct parity guess moves the bet from the
// hider's stake to the guesser's; a wrong one moves the hidden count the
// other way. When a stake reaches zero the match ends and the stakes are
// normalized to 20/0 in the winner's favor; otherwise the next round starts
// with the same hider.
func (e *Engine) Guess(id, player string, guess Guess) (Game, error) {
	if player == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Update(id, func(g *Game) error {
		if err := validateAction(g, MoveGuess, player, nil); err != nil {
			return err
		}

		guesser := g.Turn
		hider := g.Turn.Other()
		if isCorrectGuess(g.Hidden, guess) {
			g.addStake(hider, -g.Bet)
			g.addStake(guesser, g.Bet)
		} else {
			g.addStake(guesser, -g.Hidden)
			g.addStake(hider, g.Hidden)
		}

		if g.Stake1 <= 0 || g.Stake2 <= 0 {
			winner := TurnPlayer1
			if g.Stake1 <= 0 {
				winner = TurnPlayer2
			}
			g.Status = StatusEnded
			g.Winner = g.PlayerFor(winner)
			g.setStake(winner, TotalMarbles)
			g.setStake(winner.Other(), 0)
			return nil
		}

		// Round over, nobody bust. The turn is intentionally left alone:
		// whoever holds it hides again next round.
		g.Hidden = 0
		g.Bet = 0
		g.Move = MoveHide
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	if g.Status == StatusEnded {
		e.logger.Info("game over", "game", g.ID, "winner", g.Winner)
	} else {
		e.logger.Debug("round resolved", "game", g.ID, "stake1", g.Stake1, "stake2", g.Stake2)
	}
	e.publish(g)
	return g, nil
}

// Restart resets a game to a freshly joined state, keeping both players
// seated. Either participant can restart at any point.
func (e *Engine) Restart(id, player string) (Game, error) {
	if player == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Update(id, func(g *Game) error {
		if !g.IsParticipant(player) {
			return errNotAParticipant(g.ID, player)
		}
		g.Status = StatusInProgress
		g.Stake1 = InitialStake
		g.Stake2 = InitialStake
		g.Turn = TurnPlayer1
		g.Move = MoveHide
		g.Hidden = 0
		g.Bet = 0
		g.Winner = ""
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	e.logger.Info("game restarted", "game", g.ID, "player", player)
	e.publish(g)
	return g, nil
}

// Quit ends the match with no winner and removes it from the registry. The
// final snapshot is still broadcast so subscribers learn the game is gone;
// they must tolerate a snapshot for an id that no longer resolves.
func (e *Engine) Quit(id, player string) (Game, error) {
	if player == "" {
		return Game{}, errMissingIdentity()
	}

	g, ok, err := e.registry.Take(id, func(g *Game) error {
		if !g.IsParticipant(player) {
			return errNotAParticipant(g.ID, player)
		}
		g.Status = StatusEnded
		g.Winner = ""
		return nil
	})
	if !ok {
		return Game{}, errNotFound(id)
	}
	if err != nil {
		return Game{}, err
	}

	e.logger.Info("player quit", "game", g.ID, "player", player)
	e.publish(g)
	return g, nil
}

func (e *Engine) publish(g Game) {
	if e.notifier == nil {
		return
	}
	e.notifier.Publish(g.ID, g)
}

// validateAction runs the shared pipeline for in-round actions, failing on
// the first violated check: status, expected move, acting player, and (when
// count is non-nil) wager quantity against the actor's stake.
func validateAction(g *Game, requested Move, player string, count *int) error {
	if g.Status != StatusInProgress {
		return errInvalidState(g)
	}
	if g.Move != requested {
		return errWrongMove(g, requested)
	}
	if g.PlayerFor(g.Turn) != player {
		return errWrongTurn(g)
	}
	if count != nil {
		stake := g.StakeFor(g.Turn)
		if *count <= 0 || *count > stake {
			return errInvalidQuantity(*count, stake)
		}
	}
	return nil
}

// isCorrectGuess reports whether guess matches the parity of the hidden
// count. Pure: same inputs, same answer.
func isCorrectGuess(hidden int, guess Guess) bool {
	return (hidden%2 == 0) == (guess == GuessEven)
}
