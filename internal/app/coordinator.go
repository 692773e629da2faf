package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/bridge"
	"github.com/dkeye/Gather/internal/core"
	"github.com/dkeye/Gather/internal/domain"
)

var ErrRoomClosed = errors.New("room closed")

// Coordinator is the single serialized owner of one room: its member
// directory, chat feed, and attached sessions. All mutations funnel
// through the run loop, so the directory only ever applies one change
// at a time. The only slow call, the agent bridge, runs off the loop
// and re-enters it to apply its result.
type Coordinator struct {
	dir      *core.Directory
	sessions map[domain.MemberID]core.SignalConnection
	agent    bridge.Agent
	opts     Options

	cmds chan func()
	done chan struct{}

	everJoined bool
	stopped    bool
	onEmpty    func(domain.RoomCode)
}

func newCoordinator(room *domain.Room, agent bridge.Agent, opts Options, onEmpty func(domain.RoomCode)) *Coordinator {
	c := &Coordinator{
		dir:      core.NewDirectory(room, opts.ChatHistoryLimit),
		sessions: make(map[domain.MemberID]core.SignalConnection),
		agent:    agent,
		opts:     opts,
		cmds:     make(chan func(), 64),
		done:     make(chan struct{}),
		onEmpty:  onEmpty,
	}
	go c.run()
	return c
}

func (c *Coordinator) run() {
	sweep := time.NewTicker(c.opts.HeartbeatInterval)
	defer sweep.Stop()
	for {
		select {
		case cmd := <-c.cmds:
			cmd()
			// A buffered command may have been admitted in the same
			// select round that shutdown ran in; never execute past it.
			if c.stopped {
				return
			}
		case <-sweep.C:
			c.evictStale(time.Now())
			if c.stopped {
				return
			}
		case <-c.done:
			return
		}
	}
}

// do enqueues a mutation onto the serialized path. Commands enqueued
// after shutdown are dropped; callers needing a result must also watch
// done (see Join).
func (c *Coordinator) do(cmd func()) bool {
	select {
	case c.cmds <- cmd:
		return true
	case <-c.done:
		return false
	}
}

// Join attaches a session, sends it the full room snapshot, and tells
// everyone else. Synchronous: the caller needs the assigned member.
func (c *Coordinator) Join(conn core.SignalConnection, nickname string) (*domain.Member, error) {
	type result struct {
		member *domain.Member
		err    error
	}
	resp := make(chan result, 1)

	ok := c.do(func() {
		m, err := c.dir.AddMember(nickname)
		if err != nil {
			resp <- result{err: err}
			return
		}
		c.sessions[m.ID] = conn
		c.everJoined = true

		room := c.dir.Room()
		c.send(conn, core.RoomStateMsg{
			Type:        core.TypeRoomState,
			Code:        room.Code,
			Name:        room.Name,
			CreatedAt:   room.CreatedAt,
			Members:     c.dir.MembersSnapshot(),
			MemberCount: c.dir.MemberCount(),
			YourID:      m.ID,
			YourColor:   m.Color,
			ChatHistory: c.dir.RecentChat(),
		})
		c.broadcast(m.ID, core.MemberJoinedMsg{
			Type:        core.TypeMemberJoined,
			Member:      memberDTOOf(c.dir, m.ID),
			MemberCount: c.dir.MemberCount(),
		})
		log.Info().Str("module", "app.coordinator").Str("room", string(room.Code)).Str("member", string(m.ID)).Str("nickname", m.Nickname).Bool("host", m.IsHost).Msg("member joined")
		resp <- result{member: m}
	})
	if !ok {
		return nil, ErrRoomClosed
	}
	select {
	case r := <-resp:
		return r.member, r.err
	case <-c.done:
		return nil, ErrRoomClosed
	}
}

// Leave detaches a session. Explicit leaves and liveness losses share
// this path, so both get the same failover and broadcasts.
func (c *Coordinator) Leave(id domain.MemberID) {
	c.do(func() { c.removeMember(id) })
}

func (c *Coordinator) removeMember(id domain.MemberID) {
	m, ok := c.dir.RemoveMember(id)
	if !ok {
		return
	}
	delete(c.sessions, id)

	room := c.dir.Room()
	if m.IsHost {
		if next, ok := c.dir.PromoteNextHost(); ok {
			c.broadcast("", core.HostChangedMsg{
				Type:            core.TypeHostChanged,
				NewHostID:       next.ID,
				NewHostNickname: next.Nickname,
			})
			log.Info().Str("module", "app.coordinator").Str("room", string(room.Code)).Str("new_host", string(next.ID)).Msg("host changed")
		}
	}
	c.broadcast("", core.MemberLeftMsg{
		Type:        core.TypeMemberLeft,
		MemberID:    id,
		Nickname:    m.Nickname,
		MemberCount: c.dir.MemberCount(),
	})
	log.Info().Str("module", "app.coordinator").Str("room", string(room.Code)).Str("member", string(id)).Int("members", c.dir.MemberCount()).Msg("member left")

	if c.dir.MemberCount() == 0 && c.everJoined {
		c.shutdown()
	}
}

// shutdown is the final serialized operation of a coordinator.
func (c *Coordinator) shutdown() {
	if c.stopped {
		return
	}
	c.stopped = true
	if c.onEmpty != nil {
		c.onEmpty(c.dir.Room().Code)
	}
	close(c.done)
	log.Info().Str("module", "app.coordinator").Str("room", string(c.dir.Room().Code)).Msg("room destroyed")
}

// UpdateLocation replaces the member's location and fans it out to
// everyone else; the origin gets no redundant echo.
func (c *Coordinator) UpdateLocation(id domain.MemberID, loc domain.Location) {
	c.do(func() {
		if !c.dir.SetLocation(id, loc) {
			return
		}
		m, _ := c.dir.Member(id)
		c.broadcast(id, core.LocationUpdateMsg{
			Type:     core.TypeLocation,
			MemberID: id,
			Location: *m.Location,
		})
	})
}

// Heartbeat is liveness bookkeeping only; the ack is the session's job.
func (c *Coordinator) Heartbeat(id domain.MemberID) {
	c.do(func() { c.dir.Touch(id, time.Now()) })
}

// Chat appends the member's message, fans it out to every session
// including the sender, and hands the query to the agent off-loop.
func (c *Coordinator) Chat(id domain.MemberID, content string) {
	c.do(func() {
		m, ok := c.dir.Member(id)
		if !ok {
			return
		}
		msg := domain.NewUserChatMessage(m, content)
		c.dir.AppendChat(msg)
		c.broadcast("", core.ChatBroadcastMsg{Type: core.TypeChatMessage, Message: msg})
		c.broadcast("", core.AgentTypingMsg{Type: core.TypeAgentTyping, IsTyping: true})

		q := bridge.Query{
			RoomName: c.dir.Room().Name,
			Text:     content,
			Members:  c.dir.LocatedMembers(),
		}
		go c.askAgent(id, q)
	})
}

// askAgent runs outside the serialized path so joins, leaves and
// location updates keep normal latency while the agent thinks.
func (c *Coordinator) askAgent(requester domain.MemberID, q bridge.Query) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.AgentTimeout)
	defer cancel()

	reply, err := c.agent.Ask(ctx, q)

	c.do(func() {
		defer c.broadcast("", core.AgentTypingMsg{Type: core.TypeAgentTyping, IsTyping: false})
		if err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("room", string(c.dir.Room().Code)).Msg("agent bridge failed")
			// Only the requester learns about the failure, and only if
			// it is still attached.
			if conn, ok := c.sessions[requester]; ok {
				c.send(conn, core.ErrorMsg{Type: core.TypeError, Message: "assistant is unavailable right now"})
			}
			return
		}
		msg := domain.NewAgentChatMessage(reply.Text, reply.RouteData)
		c.dir.AppendChat(msg)
		c.broadcast("", core.ChatBroadcastMsg{Type: core.TypeChatMessage, Message: msg})
	})
}

// evictStale removes members that missed roughly two heartbeat
// intervals, exactly as if they had left on purpose.
func (c *Coordinator) evictStale(now time.Time) {
	for _, id := range c.dir.Stale(now, c.opts.LivenessTimeout) {
		log.Info().Str("module", "app.coordinator").Str("room", string(c.dir.Room().Code)).Str("member", string(id)).Msg("evicting stale member")
		if conn, ok := c.sessions[id]; ok {
			conn.Close()
		}
		c.removeMember(id)
		if c.stopped {
			return
		}
	}
}

// Snapshot answers the stateless room info API through the serialized
// path, so it never observes a half-applied mutation.
func (c *Coordinator) Snapshot() (domain.Room, int, error) {
	type snap struct {
		room  domain.Room
		count int
	}
	resp := make(chan snap, 1)
	ok := c.do(func() {
		resp <- snap{room: *c.dir.Room(), count: c.dir.MemberCount()}
	})
	if !ok {
		return domain.Room{}, 0, ErrRoomClosed
	}
	select {
	case s := <-resp:
		return s.room, s.count, nil
	case <-c.done:
		return domain.Room{}, 0, ErrRoomClosed
	}
}

// Stop force-closes the room: every session is closed and the
// coordinator halts. Used by room deletion and registry sweeps.
func (c *Coordinator) Stop() {
	c.do(func() {
		for id, conn := range c.sessions {
			conn.Close()
			delete(c.sessions, id)
		}
		c.shutdown()
	})
}

// StopIfNeverJoined halts a coordinator that was created but never saw
// a member. Checked and acted on in one serialized step so it cannot
// race a first join.
func (c *Coordinator) StopIfNeverJoined() {
	c.do(func() {
		if !c.everJoined {
			c.shutdown()
		}
	})
}

// broadcast fans one message out with per-socket error isolation: a
// failed write never aborts delivery to the rest. Dead sockets are
// left to the liveness sweep rather than removed mid-iteration.
func (c *Coordinator) broadcast(except domain.MemberID, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("encode broadcast")
		return
	}
	for id, conn := range c.sessions {
		if id == except {
			continue
		}
		if err := conn.TrySend(core.Frame(data)); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("member", string(id)).Msg("dropped broadcast frame")
		}
	}
}

func (c *Coordinator) send(conn core.SignalConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Msg("encode message")
		return
	}
	if err := conn.TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Msg("dropped frame")
	}
}

func memberDTOOf(dir *core.Directory, id domain.MemberID) core.MemberDTO {
	for _, dto := range dir.MembersSnapshot() {
		if dto.ID == id {
			return dto
		}
	}
	return core.MemberDTO{}
}
