package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/app"
	"github.com/dkeye/Gather/internal/config"
	"github.com/dkeye/Gather/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// CloseRoomNotFound is sent as the websocket close code when the room
// code does not resolve; the client sees it before any room_state.
const CloseRoomNotFound = 4004

const writeWait = 5 * time.Second

// RoomWSController upgrades connections and runs one Session per client.
type RoomWSController struct {
	Registry *app.Registry
	Chat     *ChatRateLimiter
	cfg      *config.Config
}

func NewRoomWSController(registry *app.Registry, cfg *config.Config) *RoomWSController {
	return &RoomWSController{
		Registry: registry,
		Chat:     NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
		cfg:      cfg,
	}
}

// WsSignalConn is the transport endpoint handed to the coordinator.
// TrySend never blocks; a full send buffer is a backpressure error.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(conn *websocket.Conn) *WsSignalConn {
	return &WsSignalConn{
		conn: conn,
		send: make(chan core.Frame, 32),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleRoom is the websocket entry point. The room must resolve before
// the session may reach Joined; an unknown code closes the socket with
// CloseRoomNotFound and nothing else is ever sent on it.
func (ctl *RoomWSController) HandleRoom(ctx context.Context, c *gin.Context) {
	code := c.Param("code")
	nickname := c.DefaultQuery("nickname", "Anonymous")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws)
	if ctl.cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.cfg.ReadLimit)
	}

	coord, ok := ctl.Registry.Resolve(code)
	if !ok {
		log.Info().Str("module", "signal").Str("code", code).Msg("room not found")
		closeWithReason(ws, CloseRoomNotFound, "room not found")
		conn.Close()
		return
	}

	sess := newSession(ctl, coord, conn)
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go sess.run(ctx, cancel, nickname)
}

func closeWithReason(ws *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (ctl *RoomWSController) writePump(ctx context.Context, c *WsSignalConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}
