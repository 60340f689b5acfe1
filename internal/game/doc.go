// Package game implements the core marble guessing game: the Game entity,
// the concurrent Registry that owns every live match, and the Engine that
// validates and applies player actions.
//
// # Rules
//
// Two players start with 10 marbles each. Each round the hider conceals some
// of their marbles, the opponent wagers a bet and guesses the parity of the
// hidden count. A correct guess wins the bet from the hider; a wrong guess
// loses marbles equal to the hidden count. The first player to take all 20
// marbles wins the match.
//
// # Basic Usage
//
// Construct the pieces explicitly and inject them:
//
//	registry := game.NewRegistry()
//	engine := game.NewEngine(registry, notifier, gameid.NewGenerator(nil), logger)
//
//	g, _ := engine.Create("alice")
//	g, _ = engine.Join(g.ID, "bob")
//	g, _ = engine.Hide(g.ID, "alice", 3)
//	g, _ = engine.Bet(g.ID, "bob", 4)
//	g, _ = engine.Guess(g.ID, "bob", game.GuessOdd)
//
// Every successful mutation is pushed to the Notifier as a full snapshot;
// clients "wait" for the opponent by watching that feed, never by blocking
// a call.
//
// # Errors
//
// Validation failures come back as *Error values carrying a closed Kind
// enumeration (KindNotFound, KindWrongTurn, ...) plus a human-readable
// message; use KindOf to branch on them at the API boundary.
package game
