package core

import (
	"time"

	"github.com/dkeye/Gather/internal/domain"
)

// memberColors is the marker palette, assigned by join order modulo
// palette size. Freed colors are not recycled on leave.
var memberColors = [...]string{
	"#ef4444", // red
	"#f97316", // orange
	"#eab308", // yellow
	"#22c55e", // green
	"#06b6d4", // cyan
	"#3b82f6", // blue
	"#8b5cf6", // violet
	"#ec4899", // pink
}

// Directory is the authoritative membership and chat state of one room.
// Pure data: no transport, no locks. The coordinator owns it and
// serializes every mutation; nothing else may touch it.
type Directory struct {
	room        *domain.Room
	members     map[domain.MemberID]*domain.Member
	chat        []domain.ChatMessage
	joinCounter int
	recentChat  int
}

func NewDirectory(room *domain.Room, recentChat int) *Directory {
	if recentChat <= 0 {
		recentChat = 50
	}
	return &Directory{
		room:       room,
		members:    make(map[domain.MemberID]*domain.Member),
		recentChat: recentChat,
	}
}

func (d *Directory) Room() *domain.Room { return d.room }

func (d *Directory) MemberCount() int { return len(d.members) }

func (d *Directory) Member(id domain.MemberID) (*domain.Member, bool) {
	m, ok := d.members[id]
	return m, ok
}

// AddMember creates a member with a fresh id, the next palette color,
// and the host flag iff the directory was empty.
func (d *Directory) AddMember(nickname string) (*domain.Member, error) {
	m, err := domain.NewMember(nickname)
	if err != nil {
		return nil, err
	}
	m.Color = memberColors[d.joinCounter%len(memberColors)]
	m.JoinOrder = d.joinCounter
	m.IsHost = len(d.members) == 0
	d.joinCounter++
	d.members[m.ID] = m
	return m, nil
}

func (d *Directory) RemoveMember(id domain.MemberID) (*domain.Member, bool) {
	m, ok := d.members[id]
	if !ok {
		return nil, false
	}
	delete(d.members, id)
	return m, true
}

// SetLocation replaces the member's location wholesale. UpdatedAt is
// stamped here so readers never see a torn mix of old and new fields.
func (d *Directory) SetLocation(id domain.MemberID, loc domain.Location) bool {
	m, ok := d.members[id]
	if !ok {
		return false
	}
	loc.UpdatedAt = time.Now()
	m.Location = &loc
	m.LastSeen = loc.UpdatedAt
	return true
}

// Touch records liveness for a member without touching anything else.
func (d *Directory) Touch(id domain.MemberID, at time.Time) {
	if m, ok := d.members[id]; ok {
		m.LastSeen = at
	}
}

// Stale returns members whose last sign of life is older than timeout.
func (d *Directory) Stale(now time.Time, timeout time.Duration) []domain.MemberID {
	var out []domain.MemberID
	for id, m := range d.members {
		if now.Sub(m.LastSeen) > timeout {
			out = append(out, id)
		}
	}
	return out
}

func (d *Directory) Host() (*domain.Member, bool) {
	for _, m := range d.members {
		if m.IsHost {
			return m, true
		}
	}
	return nil, false
}

// PromoteNextHost makes the remaining member with the lowest join order
// the host. Call only after the previous host has been removed.
func (d *Directory) PromoteNextHost() (*domain.Member, bool) {
	var next *domain.Member
	for _, m := range d.members {
		if next == nil || m.JoinOrder < next.JoinOrder {
			next = m
		}
	}
	if next == nil {
		return nil, false
	}
	next.IsHost = true
	return next, true
}

// MembersSnapshot returns read-only member views ordered by join order.
func (d *Directory) MembersSnapshot() []MemberDTO {
	out := make([]MemberDTO, 0, len(d.members))
	for _, m := range d.members {
		out = append(out, newMemberDTO(m))
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].joinOrder < out[j-1].joinOrder; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// LocatedMembers returns the positions of every member that has one,
// for handing to the agent bridge as a point-in-time snapshot.
func (d *Directory) LocatedMembers() []MemberPosition {
	out := make([]MemberPosition, 0, len(d.members))
	for _, m := range d.members {
		if m.Location == nil {
			continue
		}
		out = append(out, MemberPosition{
			ID:       m.ID,
			Nickname: m.Nickname,
			Lat:      m.Location.Lat,
			Lon:      m.Location.Lon,
		})
	}
	return out
}

func (d *Directory) AppendChat(msg domain.ChatMessage) {
	d.chat = append(d.chat, msg)
}

// RecentChat returns the tail of the chat feed for room_state snapshots.
func (d *Directory) RecentChat() []domain.ChatMessage {
	n := len(d.chat)
	if n > d.recentChat {
		n = d.recentChat
	}
	out := make([]domain.ChatMessage, n)
	copy(out, d.chat[len(d.chat)-n:])
	return out
}
