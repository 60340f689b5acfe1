// Package client is a Go client for the marbleguess server: typed wrappers
// over the REST API plus a watcher for the per-game broadcast feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/marbleguess/internal/game"
	"github.com/lox/marbleguess/internal/server"
)

// Client talks to one marbleguess server on behalf of one player. It is safe
// for concurrent use.
type Client struct {
	baseURL string
	player  string
	http    *http.Client
	logger  *log.Logger
}

// New creates a client for the server at baseURL acting as player. The
// player name is sent on every request as the caller's identity.
func New(baseURL, player string, logger *log.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		player:  player,
		http:    http.DefaultClient,
		logger:  logger.WithPrefix("client").With("player", player),
	}
}

// apiError mirrors the server's structured error body.
type apiError struct {
	Error server.ErrorData `json:"error"`
}

// Error is a failed API call: the HTTP status plus the server's error code
// and message.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (http %d)", e.Code, e.Message, e.Status)
}

type gameResponse struct {
	Message string     `json:"message"`
	Game    *game.Game `json:"game"`
	ID      string     `json:"id"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Player", c.player)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var ae apiError
		if err := json.Unmarshal(raw, &ae); err != nil || ae.Error.Code == "" {
			return &Error{Status: resp.StatusCode, Code: "unknown", Message: string(raw)}
		}
		return &Error{Status: resp.StatusCode, Code: ae.Error.Code, Message: ae.Error.Message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) action(ctx context.Context, path string, body interface{}) (game.Game, error) {
	var resp gameResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return game.Game{}, err
	}
	if resp.Game == nil {
		return game.Game{}, nil
	}
	return *resp.Game, nil
}

// Create starts a new game with the client's player seated as player one.
func (c *Client) Create(ctx context.Context) (game.Game, error) {
	g, err := c.action(ctx, "/api/games", nil)
	if err == nil {
		c.logger.Debug("created game", "game", g.ID)
	}
	return g, err
}

// Join seats the client's player as player two.
func (c *Client) Join(ctx context.Context, gameID string) (game.Game, error) {
	return c.action(ctx, "/api/games/"+gameID+"/join", nil)
}

// Hide conceals count marbles.
func (c *Client) Hide(ctx context.Context, gameID string, count int) (game.Game, error) {
	return c.action(ctx, "/api/games/"+gameID+"/hide", map[string]int{"count": count})
}

// Bet wagers count marbles against the hidden hand.
func (c *Client) Bet(ctx context.Context, gameID string, count int) (game.Game, error) {
	return c.action(ctx, "/api/games/"+gameID+"/bet", map[string]int{"count": count})
}

// Guess wagers on the parity of the hidden hand.
func (c *Client) Guess(ctx context.Context, gameID string, guess game.Guess) (game.Game, error) {
	return c.action(ctx, "/api/games/"+gameID+"/guess", map[string]game.Guess{"guess": guess})
}

// Restart resets an ended or running game to a fresh round.
func (c *Client) Restart(ctx context.Context, gameID string) (game.Game, error) {
	return c.action(ctx, "/api/games/"+gameID+"/restart", nil)
}

// Quit abandons the game, removing it from the server.
func (c *Client) Quit(ctx context.Context, gameID string) error {
	return c.do(ctx, http.MethodPost, "/api/games/"+gameID+"/quit", nil, nil)
}

// Get fetches the current snapshot of one game.
func (c *Client) Get(ctx context.Context, gameID string) (game.Game, error) {
	var g game.Game
	err := c.do(ctx, http.MethodGet, "/api/games/"+gameID, nil, &g)
	return g, err
}

// List fetches every active game.
func (c *Client) List(ctx context.Context) ([]game.Game, error) {
	var resp struct {
		Games []game.Game `json:"games"`
	}
	err := c.do(ctx, http.MethodGet, "/api/games", nil, &resp)
	return resp.Games, err
}

// Watch subscribes to the game's broadcast feed and delivers snapshots on
// the returned channel until ctx is cancelled or the connection drops. The
// channel is closed on exit; ranging over it is the intended usage.
func (c *Client) Watch(ctx context.Context, gameID string) (<-chan game.Game, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws/" + gameID

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	// Wait for the subscription ack so snapshots published after Watch
	// returns are guaranteed to be delivered.
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var msg server.Message
		if err := conn.ReadJSON(&msg); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("subscribe failed: %w", err)
		}
		if msg.Type == server.MessageTypeSubscribed {
			break
		}
	}
	_ = conn.SetReadDeadline(time.Time{})

	out := make(chan game.Game)
	go func() {
		defer close(out)
		defer conn.Close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		for {
			var msg server.Message
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("watch ended", "game", gameID, "error", err)
				}
				return
			}
			if msg.Type != server.MessageTypeGameState {
				continue
			}

			var g game.Game
			if err := json.Unmarshal(msg.Data, &g); err != nil {
				c.logger.Warn("bad snapshot on feed", "game", gameID, "error", err)
				continue
			}

			select {
			case out <- g:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
