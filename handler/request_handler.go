package handler

import (
	"net/http"

	"foodshare-api/service"

	"github.com/gin-gonic/gin"
)

// RequestHandler lets the giver decide on a request and both sides talk about the pickup.
type RequestHandler struct {
	Workflow *service.Workflow
	Inbox    *service.Inbox
}

func (h *RequestHandler) RegisterRoutes(authed *gin.RouterGroup) {
	authed.POST("/requests/:id/approve", h.Approve)
	authed.POST("/requests/:id/reject", h.Reject)
	authed.GET("/requests/:id/messages", h.Messages)
	authed.POST("/requests/:id/messages", h.PostMessage)
}

func (h *RequestHandler) Approve(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	m, err := h.Workflow.Approve(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *RequestHandler) Reject(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	m, err := h.Workflow.Reject(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// GET /api/v1/requests/:id/messages?limit=
func (h *RequestHandler) Messages(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	msgs, err := h.Inbox.Messages(c.Request.Context(), identity, c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type messagePayload struct {
	Text string `json:"text" binding:"required"`
}

func (h *RequestHandler) PostMessage(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var payload messagePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg, err := h.Inbox.PostMessage(c.Request.Context(), identity, c.Param("id"), payload.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
