package handler

import (
	"context"
	"net/http"

	"foodshare-api/model"
	"foodshare-api/repository"
	"foodshare-api/service"

	"github.com/gin-gonic/gin"
)

// MeHandler serves the caller's own listings, pickups, inboxes and badges.
type MeHandler struct {
	Listings *service.ListingService
	Inbox    *service.Inbox
}

func (h *MeHandler) RegisterRoutes(authed *gin.RouterGroup) {
	me := authed.Group("/me")
	{
		me.GET("", h.Profile)
		me.GET("/listings", h.MyListings)
		me.GET("/pickups", h.MyPickups)
		me.GET("/requests/incoming", h.Incoming)
		me.GET("/requests/outgoing", h.Outgoing)
		me.GET("/chats", h.Chats)
		me.GET("/counts", h.Counts)
	}
}

// Profile echoes the identity the token carries together with the badge counts.
func (h *MeHandler) Profile(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	counts, err := h.Inbox.Counts(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": identity, "counts": counts})
}

// GET /api/v1/me/listings?limit=&after=
func (h *MeHandler) MyListings(c *gin.Context) {
	h.listings(c, h.Listings.MyListings)
}

// GET /api/v1/me/pickups?limit=&after=
func (h *MeHandler) MyPickups(c *gin.Context) {
	h.listings(c, h.Listings.MyPickups)
}

type listingLister func(ctx context.Context, actor model.Identity, page repository.Page) ([]model.FoodListing, error)

// listings serves one page; after is the ID of the last listing of the previous page.
func (h *MeHandler) listings(c *gin.Context, list listingLister) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	page, err := h.Listings.PageAfter(c.Request.Context(), limit, c.Query("after"))
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := list(c.Request.Context(), identity, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *MeHandler) Incoming(c *gin.Context) {
	h.requests(c, h.Inbox.IncomingRequests)
}

func (h *MeHandler) Outgoing(c *gin.Context) {
	h.requests(c, h.Inbox.OutgoingRequests)
}

type requestLister func(ctx context.Context, actor model.Identity, status model.MatchStatus) ([]model.MatchRequest, error)

func (h *MeHandler) requests(c *gin.Context, list requestLister) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	status, valid := model.ParseMatchStatus(c.Query("status"))
	if !valid {
		respondError(c, invalidQuery("status"))
		return
	}
	matches, err := list(c.Request.Context(), identity, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matches)
}

func (h *MeHandler) Chats(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	chats, err := h.Inbox.Chats(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *MeHandler) Counts(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	counts, err := h.Inbox.Counts(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
