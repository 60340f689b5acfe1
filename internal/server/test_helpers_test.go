package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lox/marbleguess/internal/game"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

// newTestServer builds a server with a mock clock so keepalive pings never
// fire during tests.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(DefaultConfig(), testLogger(), quartz.NewMock(t))
}

// doJSON performs one request against the router and decodes the response
// body into out when out is non-nil.
func doJSON(t *testing.T, h http.Handler, method, path, player string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if player != "" {
		req.Header.Set(playerHeader, player)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), "body: %s", w.Body.String())
	}
	return w.Code
}

// createGame runs the create request and returns the new game's id.
func createGame(t *testing.T, h http.Handler, player string) string {
	t.Helper()

	var resp gameResponse
	code := doJSON(t, h, http.MethodPost, "/api/games", player, nil, &resp)
	require.Equal(t, http.StatusCreated, code)
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

// startedGameID creates a game for alice and joins bob, leaving it ready for
// alice's hide.
func startedGameID(t *testing.T, h http.Handler) string {
	t.Helper()

	id := createGame(t, h, "alice")
	code := doJSON(t, h, http.MethodPost, "/api/games/"+id+"/join", "bob", nil, nil)
	require.Equal(t, http.StatusOK, code)
	return id
}

func newMetricsRequest(t *testing.T) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	return httptest.NewRequest(http.MethodGet, "/metrics", nil), httptest.NewRecorder()
}

// dialGame connects a WebSocket subscriber to the game's broadcast feed of
// an httptest server.
func dialGame(t *testing.T, ts *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + gameID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readFrame reads one broadcast envelope with a deadline so a missing frame
// fails the test instead of hanging it.
func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readGameState reads the next game_state frame and decodes its snapshot.
func readGameState(t *testing.T, conn *websocket.Conn) game.Game {
	t.Helper()

	msg := readFrame(t, conn)
	require.Equal(t, MessageTypeGameState, msg.Type)
	var g game.Game
	require.NoError(t, json.Unmarshal(msg.Data, &g))
	return g
}
