package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatMessage lives in a room's append-only chat feed. SenderID is nil
// for assistant replies; RouteData is an opaque payload the agent may
// attach (a meeting place or per-member route summaries).
type ChatMessage struct {
	ID              string          `json:"id"`
	SenderID        *MemberID       `json:"sender_id"`
	SenderNickname  string          `json:"sender_nickname"`
	Content         string          `json:"content"`
	Timestamp       time.Time       `json:"timestamp"`
	IsAgentResponse bool            `json:"is_agent_response"`
	RouteData       json.RawMessage `json:"route_data,omitempty"`
}

func NewUserChatMessage(sender *Member, content string) ChatMessage {
	id := sender.ID
	return ChatMessage{
		ID:             uuid.NewString(),
		SenderID:       &id,
		SenderNickname: sender.Nickname,
		Content:        content,
		Timestamp:      time.Now(),
	}
}

func NewAgentChatMessage(content string, routeData json.RawMessage) ChatMessage {
	return ChatMessage{
		ID:              uuid.NewString(),
		SenderNickname:  "Assistant",
		Content:         content,
		Timestamp:       time.Now(),
		IsAgentResponse: true,
		RouteData:       routeData,
	}
}
