package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/app"
	"github.com/dkeye/Gather/internal/core"
	"github.com/dkeye/Gather/internal/domain"
)

// SessionState is the explicit connection state machine. A session only
// ever moves forward: Connecting -> Joined -> Closed, or Connecting ->
// Closed when the join fails.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session binds one socket to one room member. It holds no
// authoritative state, only the transport handle and the member id;
// the coordinator owns everything else.
type Session struct {
	ctl    *RoomWSController
	coord  *app.Coordinator
	conn   *WsSignalConn
	state  SessionState
	member domain.MemberID
}

func newSession(ctl *RoomWSController, coord *app.Coordinator, conn *WsSignalConn) *Session {
	return &Session{
		ctl:   ctl,
		coord: coord,
		conn:  conn,
		state: StateConnecting,
	}
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, nickname string) {
	defer cancel()
	defer s.close()

	m, err := s.coord.Join(s.conn, nickname)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrRoomClosed):
			closeWithReason(s.conn.conn, CloseRoomNotFound, "room not found")
		default:
			closeWithReason(s.conn.conn, websocket.ClosePolicyViolation, err.Error())
		}
		log.Info().Err(err).Str("module", "signal").Msg("join rejected")
		return
	}
	s.state = StateJoined
	s.member = m.ID
	log.Info().Str("module", "signal").Str("member", string(m.ID)).Str("state", s.state.String()).Msg("session joined")

	s.readLoop(ctx)
}

// close transitions to Closed exactly once and performs the cleanup
// obligations of the state it left: a Joined session must leave its
// room, a Connecting one has nothing to undo.
func (s *Session) close() {
	if s.state == StateJoined {
		s.coord.Leave(s.member)
		s.ctl.Chat.Forget(s.member)
	}
	s.state = StateClosed
	s.conn.Close()
}

func (s *Session) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := s.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("member", string(s.member)).Msg("read error")
				}
				return
			}
			s.handleFrame(data)
		}
	}
}

// handleFrame dispatches one inbound client message. Malformed frames
// get an error reply on this session only; the socket stays open.
func (s *Session) handleFrame(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		s.sendError("bad_payload")
		return
	}

	switch env.Type {
	case core.InTypeLocation:
		s.handleLocation(data)
	case core.InTypeHeartbeat:
		s.sendJSON(core.HeartbeatAckMsg{Type: core.TypeHeartbeatAck})
		s.coord.Heartbeat(s.member)
	case core.InTypeRoomChat:
		s.handleRoomChat(data)
	default:
		s.sendError(fmt.Sprintf("unknown message type: %s", env.Type))
	}
}

func (s *Session) handleLocation(data []byte) {
	var p core.LocationPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Lat == nil || p.Lon == nil {
		s.sendError("bad_payload")
		return
	}
	s.coord.UpdateLocation(s.member, domain.Location{
		Lat:      *p.Lat,
		Lon:      *p.Lon,
		Heading:  p.Heading,
		Accuracy: p.Accuracy,
	})
}

func (s *Session) handleRoomChat(data []byte) {
	var p core.RoomChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		s.sendError("bad_payload")
		return
	}
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return
	}
	if !s.ctl.Chat.Allow(s.member) {
		s.sendError("too many chat messages, slow down")
		return
	}
	s.coord.Chat(s.member, content)
}

func (s *Session) sendError(msg string) {
	s.sendJSON(core.ErrorMsg{Type: core.TypeError, Message: msg})
}

func (s *Session) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = s.conn.TrySend(b)
}
