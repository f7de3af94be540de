package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/skyoffice-server/internal/core"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub: hub,
		log: logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description" binding:"max=256"`
	Password    string `json:"password"`
	AutoDispose *bool  `json:"autoDispose"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HasPassword bool   `json:"hasPassword"`
	Clients     int    `json:"clients"`
}

func roomResponse(info core.RoomInfo) RoomResponse {
	return RoomResponse{
		ID:          info.ID,
		Name:        info.Name,
		Description: info.Description,
		HasPassword: info.HasPassword,
		Clients:     info.Clients,
	}
}

// ListRooms lists the open rooms, public room first.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	infos := h.hub.Rooms()
	rooms := make([]RoomResponse, 0, len(infos))
	for _, info := range infos {
		if info.State != core.RoomOpen {
			continue
		}
		rooms = append(rooms, roomResponse(info))
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// CreateRoom opens a custom room. Custom rooms are disposed when their last
// client leaves unless autoDispose is false.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	autoDispose := true
	if req.AutoDispose != nil {
		autoDispose = *req.AutoDispose
	}

	room, err := h.hub.CreateRoom(c.Request.Context(), core.RoomOptions{
		Name:        req.Name,
		Description: req.Description,
		Password:    req.Password,
		AutoDispose: autoDispose,
	})
	if err != nil {
		ce := core.AsCoreError(err)
		status := http.StatusBadRequest
		if ce.Code == core.ErrCodeRoomClosed {
			status = http.StatusServiceUnavailable
		}
		h.log.Debug().Err(err).Str("room_name", req.Name).Msg("failed to create room")
		c.JSON(status, ErrorResponse{Error: ce.Message})
		return
	}

	c.JSON(http.StatusCreated, roomResponse(room.Info()))
}
