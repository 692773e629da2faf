package domain

import "time"

type (
	RoomCode string
	RoomName string
)

const MaxRoomNameLen = 64

// Room is the shareable identity of a collaboration session.
// Membership and chat live in core; this is just meta-data.
type Room struct {
	Code      RoomCode  `json:"code"`
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRoom(code RoomCode, name RoomName) *Room {
	if name == "" {
		name = "New Room"
	}
	if len(name) > MaxRoomNameLen {
		name = name[:MaxRoomNameLen]
	}
	return &Room{Code: code, Name: name, CreatedAt: time.Now()}
}
