package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lox/marbleguess/internal/game"
)

// playerHeader carries the caller's identity. This is the whole of the
// authentication story: a bare name, trusted as-is.
const playerHeader = "X-Player"

type countRequest struct {
	Count int `json:"count"`
}

type guessRequest struct {
	Guess game.Guess `json:"guess"`
}

type gameResponse struct {
	Message string     `json:"message,omitempty"`
	Game    *game.Game `json:"game,omitempty"`
	ID      string     `json:"id,omitempty"`
}

type errorResponse struct {
	Error ErrorData `json:"error"`
}

// player extracts the caller identity, rendering a MissingIdentity failure
// when the header is absent.
func (s *Server) player(c *gin.Context) (string, bool) {
	p := c.GetHeader(playerHeader)
	if p == "" {
		s.renderError(c, &game.Error{Kind: game.KindMissingIdentity, Message: "player identity required: set the " + playerHeader + " header"})
		return "", false
	}
	return p, true
}

// renderError maps a domain error kind onto an HTTP status and a structured
// body clients can key UI messaging off.
func (s *Server) renderError(c *gin.Context, err error) {
	kind := game.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case game.KindNotFound:
		status = http.StatusNotFound
	case game.KindMissingIdentity, game.KindInvalidQuantity:
		status = http.StatusBadRequest
	case game.KindNotAParticipant:
		status = http.StatusForbidden
	case game.KindInvalidState, game.KindWrongMove, game.KindWrongTurn, game.KindAlreadyInProgress:
		status = http.StatusConflict
	}

	code := string(kind)
	if code == "" {
		code = "internal"
	}
	c.JSON(status, errorResponse{Error: ErrorData{Code: code, Message: err.Error()}})
}

func (s *Server) renderBadRequest(c *gin.Context, code string, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: ErrorData{Code: code, Message: err.Error()}})
}

func (s *Server) handleListGames(c *gin.Context) {
	games := s.engine.List()
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *Server) handleCreateGame(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	g, err := s.engine.Create(player)
	s.metrics.ObserveAction("create", err)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.metrics.GamesCreated.Inc()

	c.JSON(http.StatusCreated, gameResponse{ID: g.ID, Message: "game created", Game: &g})
}

func (s *Server) handleGetGame(c *gin.Context) {
	g, ok := s.engine.Get(c.Param("id"))
	if !ok {
		s.renderError(c, &game.Error{Kind: game.KindNotFound, Message: "no game with id " + c.Param("id")})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *Server) handleJoinGame(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	g, err := s.engine.Join(c.Param("id"), player)
	s.metrics.ObserveAction("join", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "joined game", Game: &g})
}

func (s *Server) handleHide(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBadRequest(c, "invalid_request", err)
		return
	}

	g, err := s.engine.Hide(c.Param("id"), player, req.Count)
	s.metrics.ObserveAction("hide", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "marbles hidden", Game: &g})
}

func (s *Server) handleBet(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	var req countRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBadRequest(c, "invalid_request", err)
		return
	}

	g, err := s.engine.Bet(c.Param("id"), player, req.Count)
	s.metrics.ObserveAction("bet", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "bet placed", Game: &g})
}

func (s *Server) handleGuess(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	// The strict enum unmarshal rejects anything but ODD or EVEN here.
	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderBadRequest(c, "invalid_guess", err)
		return
	}

	g, err := s.engine.Guess(c.Param("id"), player, req.Guess)
	s.metrics.ObserveAction("guess", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "guess resolved", Game: &g})
}

func (s *Server) handleRestart(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	g, err := s.engine.Restart(c.Param("id"), player)
	s.metrics.ObserveAction("restart", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "game restarted", Game: &g})
}

func (s *Server) handleQuit(c *gin.Context) {
	player, ok := s.player(c)
	if !ok {
		return
	}

	_, err := s.engine.Quit(c.Param("id"), player)
	s.metrics.ObserveAction("quit", err)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gameResponse{Message: "left game"})
}

// handleWebSocket upgrades the connection and subscribes it to the game's
// broadcast topic. Unknown ids are accepted; the game may not exist yet, or
// may already be gone.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	gameID := c.Param("id")
	var current *game.Game
	if g, ok := s.engine.Get(gameID); ok {
		current = &g
	}
	s.hub.Subscribe(conn, gameID, current)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
