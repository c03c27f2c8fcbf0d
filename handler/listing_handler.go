package handler

import (
	"net/http"
	"strings"

	"foodshare-api/middleware"
	"foodshare-api/model"
	"foodshare-api/proximity"
	"foodshare-api/service"

	"github.com/gin-gonic/gin"
)

// ListingHandler serves discovery, listing content and the listing-side workflow transitions.
type ListingHandler struct {
	Listings *service.ListingService
	Workflow *service.Workflow
	Fees     service.Fees
}

func (h *ListingHandler) RegisterRoutes(public, authed *gin.RouterGroup) {
	public.GET("/listings", h.Discover)
	public.GET("/listings/:id", h.GetListing)
	public.GET("/fees", h.GetFees)

	authed.POST("/listings", h.CreateListing)
	authed.PUT("/listings/:id", h.UpdateListing)
	authed.DELETE("/listings/:id", h.DeleteListing)

	authed.POST("/listings/:id/requests", h.RequestListing)
	authed.POST("/listings/:id/complete", h.CompletePickup)
	authed.POST("/listings/:id/cancel", h.CancelReservation)
}

type rankedListing struct {
	proximity.Ranked
	Distance string `json:"distance,omitempty"`
}

// GET /api/v1/listings?lat=&lng=&radius_km=&limit=&category=&q=
// A signed-in caller does not see their own listings.
func (h *ListingHandler) Discover(c *gin.Context) {
	lat, hasLat, err := queryFloat(c, "lat")
	if err != nil {
		respondError(c, err)
		return
	}
	lng, hasLng, err := queryFloat(c, "lng")
	if err != nil {
		respondError(c, err)
		return
	}
	if hasLat != hasLng {
		respondError(c, invalidQuery("lat/lng"))
		return
	}
	radius, _, err := queryFloat(c, "radius_km")
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}

	q := service.DiscoverQuery{
		RadiusKm: radius,
		Limit:    limit,
		Category: model.Category(strings.ToLower(strings.TrimSpace(c.Query("category")))),
		Search:   c.Query("q"),
	}
	if q.Category == "all" {
		q.Category = ""
	}
	if hasLat {
		q.Location = &model.Coordinates{Latitude: lat, Longitude: lng}
	}
	if viewer, ok := middleware.IdentityFrom(c); ok {
		q.ViewerID = viewer.ID
	}

	ranked, err := h.Listings.Discover(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]rankedListing, 0, len(ranked))
	for _, r := range ranked {
		item := rankedListing{Ranked: r}
		if r.DistanceKm != nil {
			item.Distance = proximity.FormatDistance(*r.DistanceKm)
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	l, err := h.Listings.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": l, "fees": h.Fees.ForListing(l)})
}

// GET /api/v1/fees?price_cents=
func (h *ListingHandler) GetFees(c *gin.Context) {
	price, err := queryInt(c, "price_cents")
	if err != nil {
		respondError(c, err)
		return
	}
	b, err := h.Fees.Breakdown(int64(price))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"breakdown":     b,
		"price":         service.FormatCents(b.PriceCents),
		"fee":           service.FormatCents(b.FeeCents),
		"giverReceives": service.FormatCents(b.GiverReceivesCents),
	})
}

func (h *ListingHandler) CreateListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var payload model.ListingInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.Listings.CreateListing(c.Request.Context(), identity, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (h *ListingHandler) UpdateListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	var payload model.ListingInput
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	l, err := h.Listings.UpdateListing(c.Request.Context(), identity, c.Param("id"), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) DeleteListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	if err := h.Workflow.DeleteListing(c.Request.Context(), identity, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ListingHandler) RequestListing(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	m, err := h.Workflow.RequestListing(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *ListingHandler) CompletePickup(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	l, err := h.Workflow.CompletePickup(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (h *ListingHandler) CancelReservation(c *gin.Context) {
	identity, ok := actor(c)
	if !ok {
		return
	}
	l, err := h.Workflow.CancelReservation(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}
