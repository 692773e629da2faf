package core

import (
	"time"

	"github.com/dkeye/Gather/internal/domain"
)

// Server -> client message types.
const (
	TypeRoomState    = "room_state"
	TypeMemberJoined = "member_joined"
	TypeMemberLeft   = "member_left"
	TypeLocation     = "location_update"
	TypeHostChanged  = "host_changed"
	TypeHeartbeatAck = "heartbeat_ack"
	TypeChatMessage  = "room_chat_message"
	TypeAgentTyping  = "agent_typing"
	TypeError        = "error"
)

// Client -> server message types.
const (
	InTypeLocation  = "location"
	InTypeHeartbeat = "heartbeat"
	InTypeRoomChat  = "room_chat"
)

// MemberDTO is a read-only member view for the wire (no liveness fields).
type MemberDTO struct {
	ID       domain.MemberID  `json:"id"`
	Nickname string           `json:"nickname"`
	Color    string           `json:"color"`
	IsHost   bool             `json:"is_host"`
	Location *domain.Location `json:"location,omitempty"`

	joinOrder int
}

func newMemberDTO(m *domain.Member) MemberDTO {
	dto := MemberDTO{
		ID:        m.ID,
		Nickname:  m.Nickname,
		Color:     m.Color,
		IsHost:    m.IsHost,
		joinOrder: m.JoinOrder,
	}
	if m.Location != nil {
		loc := *m.Location
		dto.Location = &loc
	}
	return dto
}

// MemberPosition is the slim location snapshot handed to the agent bridge.
type MemberPosition struct {
	ID       domain.MemberID `json:"member_id"`
	Nickname string          `json:"nickname"`
	Lat      float64         `json:"lat"`
	Lon      float64         `json:"lon"`
}

// RoomStateMsg is the full snapshot sent to a joining session only.
type RoomStateMsg struct {
	Type        string               `json:"type"`
	Code        domain.RoomCode      `json:"code"`
	Name        domain.RoomName      `json:"name"`
	CreatedAt   time.Time            `json:"created_at"`
	Members     []MemberDTO          `json:"members"`
	MemberCount int                  `json:"member_count"`
	YourID      domain.MemberID      `json:"your_id"`
	YourColor   string               `json:"your_color"`
	ChatHistory []domain.ChatMessage `json:"chat_history"`
}

type MemberJoinedMsg struct {
	Type        string    `json:"type"`
	Member      MemberDTO `json:"member"`
	MemberCount int       `json:"member_count"`
}

type MemberLeftMsg struct {
	Type        string          `json:"type"`
	MemberID    domain.MemberID `json:"member_id"`
	Nickname    string          `json:"nickname"`
	MemberCount int             `json:"member_count"`
}

type LocationUpdateMsg struct {
	Type     string          `json:"type"`
	MemberID domain.MemberID `json:"member_id"`
	Location domain.Location `json:"location"`
}

type HostChangedMsg struct {
	Type            string          `json:"type"`
	NewHostID       domain.MemberID `json:"new_host_id"`
	NewHostNickname string          `json:"new_host_nickname"`
}

type HeartbeatAckMsg struct {
	Type string `json:"type"`
}

type ChatBroadcastMsg struct {
	Type    string             `json:"type"`
	Message domain.ChatMessage `json:"message"`
}

type AgentTypingMsg struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// LocationPayload is the client location report. Pointers on lat/lon
// let the session reject payloads where they are missing entirely.
type LocationPayload struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Heading  *float64 `json:"heading,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

type RoomChatPayload struct {
	Content string `json:"content"`
}
