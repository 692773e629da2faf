// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxNicknameLen = 36

var (
	ErrNicknameEmpty   = errors.New("nickname empty")
	ErrNicknameTooLong = errors.New("nickname too long")
)

type MemberID string

// Member is one participant of a room. The id is generated at join
// time and is unique within the room's lifetime; color and host flag
// are assigned by the directory, never by the client.
type Member struct {
	ID        MemberID  `json:"id"`
	Nickname  string    `json:"nickname"`
	Color     string    `json:"color"`
	IsHost    bool      `json:"is_host"`
	Location  *Location `json:"location,omitempty"`
	JoinOrder int       `json:"-"`
	JoinedAt  time.Time `json:"-"`
	LastSeen  time.Time `json:"-"`
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(nickname string) (*Member, error) {
	if err := ValidateNickname(nickname); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Member{
		ID:       MemberID(uuid.NewString()),
		Nickname: nickname,
		JoinedAt: now,
		LastSeen: now,
	}, nil
}

func ValidateNickname(nickname string) error {
	if len(nickname) == 0 {
		return ErrNicknameEmpty
	}
	if len(nickname) > MaxNicknameLen {
		return ErrNicknameTooLong
	}
	return nil
}
