package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fadechat/fadechat/internal/app"
	"github.com/fadechat/fadechat/internal/domain"
)

type Handlers struct {
	Engine *app.Engine
}

type loginRequest struct {
	DisplayName string `json:"displayName" binding:"required"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonMissingFields})
		return
	}
	user, err := h.Engine.Login(c.Request.Context(), req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNameTaken):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": app.ReasonNameTaken})
		case errors.Is(err, domain.ErrDisplayNameEmpty), errors.Is(err, domain.ErrDisplayNameTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonInvalidLength})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "userId": user.ID, "displayName": user.DisplayName})
}

func (h *Handlers) CheckName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonMissingFields})
		return
	}
	available, err := h.Engine.CheckNameAvailable(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

type createRoomRequest struct {
	Name             string `json:"name" binding:"required"`
	OwnerID          string `json:"ownerId" binding:"required"`
	OwnerDisplayName string `json:"ownerDisplayName"`
	MaxUsers         int    `json:"maxUsers"`
	CustomCode       string `json:"customCode"`
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonMissingFields})
		return
	}
	room, err := h.Engine.CreateRoom(c.Request.Context(), req.Name, domain.UserID(req.OwnerID), req.MaxUsers, req.CustomCode)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBadRoomCode):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonInvalidCode})
		case errors.Is(err, domain.ErrNameTaken):
			c.JSON(http.StatusConflict, gin.H{"ok": false, "error": app.ReasonNameTaken})
		case errors.Is(err, domain.ErrRoomNameEmpty), errors.Is(err, domain.ErrRoomNameTooLong):
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonMissingFields})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "room": room})
}

func (h *Handlers) GetRoom(c *gin.Context) {
	room, members, err := h.Engine.GetRoom(c.Request.Context(), domain.RoomID(c.Param("id")))
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": app.ReasonRoomNotFound})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "room": room, "members": members})
}

func (h *Handlers) DeleteRoom(c *gin.Context) {
	owner := c.Query("ownerId")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": app.ReasonMissingFields})
		return
	}
	err := h.Engine.DeleteRoom(c.Request.Context(), domain.RoomID(c.Param("id")), domain.UserID(owner))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": app.ReasonRoomNotFound})
		case errors.Is(err, domain.ErrNotOwner):
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": app.ReasonNotOwner})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	rooms, err := h.Engine.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": app.ReasonStorage})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "rooms": rooms})
}
