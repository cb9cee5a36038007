package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	server "warbound/server"
	"warbound/server/internal/config"
	"warbound/server/internal/content"
	"warbound/server/internal/sim"
)

func newTestServer(t *testing.T) (*httptest.Server, *server.Hub) {
	t.Helper()
	cols, err := content.Load(nil)
	require.NoError(t, err)
	hub := server.NewHub(server.HubConfig{
		Sim:         config.Default().Sim,
		Collections: cols,
	})
	t.Cleanup(hub.Shutdown)

	ts := httptest.NewServer(NewRouter(hub, RouterConfig{}))
	t.Cleanup(ts.Close)
	return ts, hub
}

func postJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Less(t, resp.StatusCode, 300, "POST %s", url)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	created := postJSON(t, ts.URL+"/api/rooms")
	roomID, _ := created["roomId"].(string)
	require.NotEmpty(t, roomID)

	t.Run("join", func(t *testing.T) {
		joined := postJSON(t, ts.URL+"/api/rooms/"+roomID+"/join")
		require.Equal(t, roomID, joined["roomId"])
		require.NotEmpty(t, joined["sessionId"])
	})

	t.Run("join unknown room", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/rooms/nope/join", "application/json", nil)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("diagnostics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/rooms/" + roomID)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var info server.RoomInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
		require.Equal(t, roomID, info.ID)
	})
}

func TestWebsocketSessionFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	created := postJSON(t, ts.URL+"/api/rooms")
	roomID := created["roomId"].(string)
	joined := postJSON(t, ts.URL+"/api/rooms/"+roomID+"/join")
	sessionID := joined["sessionId"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + roomID + "/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Stage a spawn and wait for a broadcast that includes the unit.
	spawn := inboundMessage{
		Type: "command",
		Command: &sim.Command{
			Type:  sim.CommandSpawn,
			Spawn: &sim.SpawnCommand{UnitID: "footman", Team: "red", X: 10, Y: 10},
		},
	}
	require.NoError(t, conn.WriteJSON(spawn))

	deadline := time.Now().Add(5 * time.Second)
	for {
		require.True(t, time.Now().Before(deadline), "no state broadcast with the spawned unit")
		conn.SetReadDeadline(deadline)
		var state struct {
			Type     string       `json:"type"`
			Tick     uint64       `json:"tick"`
			Checksum uint64       `json:"checksum"`
			Snapshot sim.Snapshot `json:"snapshot"`
		}
		require.NoError(t, conn.ReadJSON(&state))
		require.Equal(t, "state", state.Type)
		if len(state.Snapshot.Entities) == 1 {
			require.NotZero(t, state.Checksum)
			break
		}
	}
}

func TestWebsocketRejectsUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t)
	created := postJSON(t, ts.URL+"/api/rooms")
	roomID := created["roomId"].(string)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + roomID + "/not-a-session"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		// The upgrade may succeed before the subscribe check closes the
		// connection; the first read must fail either way.
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, readErr := conn.ReadMessage()
		require.Error(t, readErr)
		conn.Close()
	}
}
