package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/app"
	"github.com/dkeye/Gather/internal/domain"
)

type RoomHandlers struct {
	Registry *app.Registry
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type CreateRoomResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type RoomInfoResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

func (h *RoomHandlers) Create(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	room, err := h.Registry.CreateRoom(domain.RoomName(req.Name))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create room")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}
	c.JSON(http.StatusOK, CreateRoomResponse{
		Code: string(room.Code),
		Name: string(room.Name),
	})
}

func (h *RoomHandlers) Get(c *gin.Context) {
	coord, ok := h.Registry.Resolve(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	room, count, err := coord.Snapshot()
	if err != nil {
		// Destroyed between resolve and snapshot.
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomInfoResponse{
		Code:        string(room.Code),
		Name:        string(room.Name),
		MemberCount: count,
	})
}

func (h *RoomHandlers) Delete(c *gin.Context) {
	if !h.Registry.Delete(c.Param("code")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
