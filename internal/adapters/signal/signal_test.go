package signal_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Gather/internal/adapters/signal"
	"github.com/dkeye/Gather/internal/app"
	"github.com/dkeye/Gather/internal/bridge"
	"github.com/dkeye/Gather/internal/config"
)

type stubAgent struct {
	reply bridge.Reply
}

func (a *stubAgent) Ask(ctx context.Context, q bridge.Query) (*bridge.Reply, error) {
	r := a.reply
	return &r, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:           "release",
		ReadLimit:      32768,
		ChatRateLimit:  10,
		ChatRateWindow: time.Minute,
	}
}

func newTestServer(t *testing.T, agent bridge.Agent) (*httptest.Server, *app.Registry) {
	t.Helper()
	registry := app.NewRegistry(agent, app.Options{
		HeartbeatInterval: time.Hour,
		AgentTimeout:      2 * time.Second,
		EmptyRoomTTL:      time.Hour,
	})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	ctl := signal.NewRoomWSController(registry, testConfig())
	r.GET("/api/ws/rooms/:code", func(c *gin.Context) {
		ctl.HandleRoom(context.Background(), c)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server, code, nickname string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/rooms/" + code + "?nickname=" + nickname
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMsg(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func expectMsg(t *testing.T, ws *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	m := readMsg(t, ws)
	require.Equal(t, wantType, m["type"], "unexpected message %v", m)
	return m
}

func sendMsg(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

func TestUnknownRoomClosesWithDistinguishedCode(t *testing.T) {
	srv, _ := newTestServer(t, &stubAgent{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/rooms/NOPE99?nickname=Ann"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, signal.CloseRoomNotFound, closeErr.Code)
	assert.Equal(t, "room not found", closeErr.Text)
}

func TestJoinReceivesRoomState(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, string(room.Code), "Ann")

	state := expectMsg(t, ws, "room_state")
	assert.Equal(t, string(room.Code), state["code"])
	assert.Equal(t, "Trip", state["name"])
	assert.EqualValues(t, 1, state["member_count"])
	assert.NotEmpty(t, state["your_id"])
	assert.NotEmpty(t, state["your_color"])
}

func TestRoomCodeResolvesCaseInsensitively(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, strings.ToLower(string(room.Code)), "Ann")
	expectMsg(t, ws, "room_state")
}

func TestHeartbeatAcked(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, string(room.Code), "Ann")
	expectMsg(t, ws, "room_state")

	sendMsg(t, ws, map[string]any{"type": "heartbeat"})
	expectMsg(t, ws, "heartbeat_ack")
}

func TestMalformedMessageGetsErrorWithoutClosing(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, string(room.Code), "Ann")
	expectMsg(t, ws, "room_state")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	errMsg := expectMsg(t, ws, "error")
	assert.Equal(t, "bad_payload", errMsg["message"])

	sendMsg(t, ws, map[string]any{"type": "teleport"})
	errMsg = expectMsg(t, ws, "error")
	assert.Contains(t, errMsg["message"], "unknown message type")

	// Missing coordinates are a protocol error too.
	sendMsg(t, ws, map[string]any{"type": "location", "lat": 55.75})
	expectMsg(t, ws, "error")

	// The session survived all of it.
	sendMsg(t, ws, map[string]any{"type": "heartbeat"})
	expectMsg(t, ws, "heartbeat_ack")
}

func TestLocationFanOutBetweenClients(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	wsA := dial(t, srv, string(room.Code), "Ann")
	stateA := expectMsg(t, wsA, "room_state")
	annID := stateA["your_id"].(string)

	wsB := dial(t, srv, string(room.Code), "Bea")
	expectMsg(t, wsB, "room_state")
	joined := expectMsg(t, wsA, "member_joined")
	assert.EqualValues(t, 2, joined["member_count"])

	sendMsg(t, wsA, map[string]any{"type": "location", "lat": 55.75, "lon": 37.61, "heading": 10.0})

	update := expectMsg(t, wsB, "location_update")
	assert.Equal(t, annID, update["member_id"])
	loc := update["location"].(map[string]any)
	assert.Equal(t, 55.75, loc["lat"])
	assert.Equal(t, 37.61, loc["lon"])
}

func TestDisconnectTriggersFailoverAndMemberLeft(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	wsA := dial(t, srv, string(room.Code), "Ann")
	stateA := expectMsg(t, wsA, "room_state")
	annID := stateA["your_id"].(string)

	wsB := dial(t, srv, string(room.Code), "Bea")
	stateB := expectMsg(t, wsB, "room_state")
	beaID := stateB["your_id"].(string)
	expectMsg(t, wsA, "member_joined")

	require.NoError(t, wsA.Close())

	changed := expectMsg(t, wsB, "host_changed")
	assert.Equal(t, beaID, changed["new_host_id"])
	left := expectMsg(t, wsB, "member_left")
	assert.Equal(t, annID, left["member_id"])
	assert.EqualValues(t, 1, left["member_count"])
}

func TestRoomChatRoundTripThroughAgent(t *testing.T) {
	agent := &stubAgent{reply: bridge.Reply{
		Text:      "Meet at Cafe",
		RouteData: json.RawMessage(`{"type":"meeting_place"}`),
	}}
	srv, registry := newTestServer(t, agent)
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, string(room.Code), "Ann")
	expectMsg(t, ws, "room_state")

	sendMsg(t, ws, map[string]any{"type": "room_chat", "content": "find a cafe for us"})

	own := expectMsg(t, ws, "room_chat_message")
	assert.Equal(t, "find a cafe for us", own["message"].(map[string]any)["content"])

	typing := expectMsg(t, ws, "agent_typing")
	assert.Equal(t, true, typing["is_typing"])

	reply := expectMsg(t, ws, "room_chat_message")
	msg := reply["message"].(map[string]any)
	assert.Equal(t, "Meet at Cafe", msg["content"])
	assert.Equal(t, true, msg["is_agent_response"])

	done := expectMsg(t, ws, "agent_typing")
	assert.Equal(t, false, done["is_typing"])
}

func TestEmptyChatIgnored(t *testing.T) {
	srv, registry := newTestServer(t, &stubAgent{})
	room, err := registry.CreateRoom("Trip")
	require.NoError(t, err)

	ws := dial(t, srv, string(room.Code), "Ann")
	expectMsg(t, ws, "room_state")

	sendMsg(t, ws, map[string]any{"type": "room_chat", "content": "   "})

	// Nothing comes back; a heartbeat proves the session is healthy.
	sendMsg(t, ws, map[string]any{"type": "heartbeat"})
	expectMsg(t, ws, "heartbeat_ack")
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "connecting", signal.StateConnecting.String())
	assert.Equal(t, "joined", signal.StateJoined.String())
	assert.Equal(t, "closed", signal.StateClosed.String())
}
