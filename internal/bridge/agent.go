// Package bridge is the boundary to the external natural-language
// recommendation service. It reads a location snapshot taken at call
// time and never mutates room state.
package bridge

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Gather/internal/core"
	"github.com/dkeye/Gather/internal/domain"
)

// Query carries one chat message plus the positions of every member
// that had one when the coordinator snapshotted the room.
type Query struct {
	RoomName domain.RoomName       `json:"room_name"`
	Text     string                `json:"query"`
	Members  []core.MemberPosition `json:"members"`
}

// Reply is the agent's answer. RouteData is opaque to the room core;
// known shapes are "meeting_place" and "routes_to_destination".
type Reply struct {
	Text      string          `json:"response"`
	RouteData json.RawMessage `json:"route_data,omitempty"`
}

type Agent interface {
	Ask(ctx context.Context, q Query) (*Reply, error)
}
