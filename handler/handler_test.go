package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"foodshare-api/handler"
	"foodshare-api/middleware"
	"foodshare-api/model"
	"foodshare-api/repository"
	"foodshare-api/router"
	"foodshare-api/service"
	"foodshare-api/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryImages struct {
	mu   sync.Mutex
	data map[string][]byte
	ct   map[string]string
}

func newMemoryImages() *memoryImages {
	return &memoryImages{data: map[string][]byte{}, ct: map[string]string{}}
}

func (m *memoryImages) Upload(_ context.Context, r io.Reader, contentType string) (*storage.Image, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("img-%d", len(m.data)+1)
	m.data[id], m.ct[id] = b, contentType
	return &storage.Image{ID: id, URL: "/api/v1/images/" + id, ContentType: contentType}, nil
}

func (m *memoryImages) Open(_ context.Context, id string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[id]
	if !ok {
		return nil, "", fmt.Errorf("%w: image %s", model.ErrNotFound, id)
	}
	return io.NopCloser(bytes.NewReader(b)), m.ct[id], nil
}

type downStore struct{ *repository.MemoryStore }

func (downStore) Ping(context.Context) error {
	return fmt.Errorf("ping: %w: %w", model.ErrStoreUnavailable, errors.New("connection refused"))
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	verifier := &middleware.JWTVerifier{Secret: []byte("test-secret")}

	listings := service.NewListingService(store, 5, 100)
	workflow := service.NewWorkflow(store, store, nil)
	inbox := service.NewInbox(store, store, nil)

	h := router.Handlers{
		Health:   &handler.HealthHandler{Store: store},
		Listings: &handler.ListingHandler{Listings: listings, Workflow: workflow, Fees: service.NewFees(10)},
		Requests: &handler.RequestHandler{Workflow: workflow, Inbox: inbox},
		Me:       &handler.MeHandler{Listings: listings, Inbox: inbox},
		Images:   &handler.ImageHandler{Images: newMemoryImages()},
	}

	tokens := map[string]string{}
	for id, name := range map[string]string{"giver": "Gina", "seeker": "Sam", "seeker-2": "Sue"} {
		token, err := verifier.IssueToken(id, name, time.Hour)
		require.NoError(t, err)
		tokens[id] = token
	}
	return &testServer{t: t, router: router.SetupRouter(h, verifier), tokens: tokens}
}

func (s *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func listingPayload(title string, lat, lng float64) map[string]any {
	return map[string]any{
		"title":              title,
		"description":        "Fresh from the bakery",
		"priceCents":         250,
		"originalPriceCents": 600,
		"category":           "bakery",
		"storageCondition":   "pantry",
		"packageStatus":      "sealed",
		"expiryLabel":        "Today",
		"location":           map[string]any{"coordinates": map[string]any{"lat": lat, "lng": lng}, "city": "München"},
		"imageRef":           "/api/v1/images/img-1",
	}
}

func (s *testServer) createListing(title string) model.FoodListing {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/listings", "giver", listingPayload(title, 48.1351, 11.5820))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.FoodListing](s.t, w)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/ready", "", nil).Code)
}

func TestReady_StoreDown(t *testing.T) {
	r := gin.New()
	(&handler.HealthHandler{Store: downStore{repository.NewMemoryStore()}}).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestPickupFlow(t *testing.T) {
	s := newTestServer(t)
	l := s.createListing("Croissants")
	assert.Equal(t, model.ListingAvailable, l.Status)

	w := s.do(http.MethodGet, "/api/v1/listings?lat=48.14&lng=11.58", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[[]map[string]any](t, w)
	require.Len(t, found, 1)
	assert.Equal(t, "600 m", found[0]["distance"])

	w = s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/requests", "seeker", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	req := decode[model.MatchRequest](t, w)
	assert.Equal(t, model.MatchInterested, req.Status)

	w = s.do(http.MethodGet, "/api/v1/me/counts", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.Counts{PendingIncoming: 1}, decode[model.Counts](t, w))

	w = s.do(http.MethodPost, "/api/v1/requests/"+req.ID+"/approve", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.MatchApproved, decode[model.MatchRequest](t, w).Status)

	w = s.do(http.MethodPost, "/api/v1/requests/"+req.ID+"/messages", "seeker", map[string]string{"text": "On my way"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/requests/"+req.ID+"/messages", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]model.Message](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Sam", msgs[0].SenderDisplayName)

	w = s.do(http.MethodGet, "/api/v1/me/pickups", "seeker", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.FoodListing](t, w), 1)

	w = s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/complete", "seeker", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.ListingCompleted, decode[model.FoodListing](t, w).Status)

	w = s.do(http.MethodGet, "/api/v1/listings/"+l.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[struct {
		Listing model.FoodListing    `json:"listing"`
		Fees    service.FeeBreakdown `json:"fees"`
	}](t, w)
	assert.Equal(t, model.ListingCompleted, got.Listing.Status)
	assert.Equal(t, service.FeeBreakdown{PriceCents: 250, FeeCents: 25, GiverReceivesCents: 225}, got.Fees)
}

func TestDiscoverFilters(t *testing.T) {
	s := newTestServer(t)
	s.createListing("Croissants")
	w := s.do(http.MethodPost, "/api/v1/listings", "seeker", listingPayload("Bagels to share", 48.1351, 11.5820))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	titles := func(path, user string) []string {
		t.Helper()
		w := s.do(http.MethodGet, path, user, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var out []string
		for _, item := range decode[[]map[string]any](t, w) {
			out = append(out, item["title"].(string))
		}
		return out
	}

	assert.ElementsMatch(t, []string{"Croissants", "Bagels to share"}, titles("/api/v1/listings", ""))
	assert.Equal(t, []string{"Croissants"}, titles("/api/v1/listings", "seeker"))
	assert.Equal(t, []string{"Bagels to share"}, titles("/api/v1/listings?q=BAGEL", "giver"))
	assert.Empty(t, titles("/api/v1/listings?category=dairy", ""))
	assert.ElementsMatch(t, []string{"Croissants", "Bagels to share"}, titles("/api/v1/listings?category=All", ""))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	l := s.createListing("Bagels")

	w1 := s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/requests", "seeker", nil)
	require.Equal(t, http.StatusCreated, w1.Code)
	w2 := s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/requests", "seeker-2", nil)
	require.Equal(t, http.StatusCreated, w2.Code)
	first, second := decode[model.MatchRequest](t, w1), decode[model.MatchRequest](t, w2)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/requests/"+first.ID+"/approve", "giver", nil).Code)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"no token", http.MethodPost, "/api/v1/listings", "", listingPayload("x", 0, 0), http.StatusUnauthorized},
		{"bad body", http.MethodPost, "/api/v1/listings", "giver", map[string]any{"title": ""}, http.StatusBadRequest},
		{"bad coordinates", http.MethodPost, "/api/v1/listings", "giver", listingPayload("x", 95, 0), http.StatusBadRequest},
		{"own listing", http.MethodPost, "/api/v1/listings/" + l.ID + "/requests", "giver", nil, http.StatusUnprocessableEntity},
		{"second approval", http.MethodPost, "/api/v1/requests/" + second.ID + "/approve", "giver", nil, http.StatusConflict},
		{"seeker approves", http.MethodPost, "/api/v1/requests/" + second.ID + "/approve", "seeker-2", nil, http.StatusUnprocessableEntity},
		{"unknown listing", http.MethodGet, "/api/v1/listings/missing", "", nil, http.StatusNotFound},
		{"delete reserved", http.MethodDelete, "/api/v1/listings/" + l.ID, "giver", nil, http.StatusUnprocessableEntity},
		{"bad lat", http.MethodGet, "/api/v1/listings?lat=north&lng=11", "", nil, http.StatusBadRequest},
		{"lat without lng", http.MethodGet, "/api/v1/listings?lat=48", "", nil, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/me/requests/incoming?status=maybe", "giver", nil, http.StatusBadRequest},
		{"negative price", http.MethodGet, "/api/v1/fees?price_cents=-1", "", nil, http.StatusBadRequest},
		{"price too large", http.MethodGet, "/api/v1/fees?price_cents=1844674407370955161", "", nil, http.StatusBadRequest},
		{"unknown category", http.MethodGet, "/api/v1/listings?category=snacks", "", nil, http.StatusBadRequest},
		{"unknown cursor", http.MethodGet, "/api/v1/me/listings?after=missing", "giver", nil, http.StatusBadRequest},
		{"chat closed", http.MethodPost, "/api/v1/requests/" + second.ID + "/messages", "seeker-2", map[string]string{"text": "hi"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCancelAndDelete(t *testing.T) {
	s := newTestServer(t)
	l := s.createListing("Pretzels")

	w := s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/requests", "seeker", nil)
	req := decode[model.MatchRequest](t, w)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/requests/"+req.ID+"/approve", "giver", nil).Code)

	w = s.do(http.MethodPost, "/api/v1/listings/"+l.ID+"/cancel", "seeker", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cancelled := decode[model.FoodListing](t, w)
	assert.Equal(t, model.ListingAvailable, cancelled.Status)
	assert.Nil(t, cancelled.ReservedBy)

	w = s.do(http.MethodPost, "/api/v1/requests/"+req.ID+"/reject", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.MatchRejected, decode[model.MatchRequest](t, w).Status)

	w = s.do(http.MethodPut, "/api/v1/listings/"+l.ID, "giver", listingPayload("Pretzels (4)", 48.1351, 11.5820))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Pretzels (4)", decode[model.FoodListing](t, w).Title)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/v1/listings/"+l.ID, "giver", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/listings/"+l.ID, "", nil).Code)
}

func TestFees(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/v1/fees?price_cents=1005", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "€10.05", body["price"])
	assert.Equal(t, "€1.01", body["fee"])
	assert.Equal(t, "€9.04", body["giverReceives"])

	w = s.do(http.MethodGet, "/api/v1/fees?price_cents=0", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "€0.00", decode[map[string]any](t, w)["fee"])
}

func TestMe(t *testing.T) {
	s := newTestServer(t)
	s.createListing("Muffins")

	w := s.do(http.MethodGet, "/api/v1/me", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":{"id":"giver","displayName":"Gina"},"counts":{"pendingIncoming":0,"pendingOutgoing":0}}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/me/listings", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.FoodListing](t, w), 1)

	s.createListing("Scones")
	s.createListing("Cookies")
	w = s.do(http.MethodGet, "/api/v1/me/listings?limit=2", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[[]model.FoodListing](t, w)
	require.Len(t, first, 2)
	w = s.do(http.MethodGet, "/api/v1/me/listings?limit=2&after="+first[1].ID, "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rest := decode[[]model.FoodListing](t, w)
	require.Len(t, rest, 1)
	assert.NotContains(t, []string{first[0].ID, first[1].ID}, rest[0].ID)

	w = s.do(http.MethodGet, "/api/v1/me/chats", "giver", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func multipartImage(t *testing.T, contentType string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *testServer) upload(user, contentType string, size int) *httptest.ResponseRecorder {
	s.t.Helper()
	body, ct := multipartImage(s.t, contentType, size)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/images", body)
	req.Header.Set("Content-Type", ct)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+s.tokens[user])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestImages(t *testing.T) {
	s := newTestServer(t)

	w := s.upload("giver", "image/jpeg", 64)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	img := decode[storage.Image](t, w)
	assert.Equal(t, "image/jpeg", img.ContentType)

	w = s.do(http.MethodGet, "/api/v1/images/"+img.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Len(t, w.Body.Bytes(), 64)

	assert.Equal(t, http.StatusUnauthorized, s.upload("", "image/jpeg", 64).Code)
	assert.Equal(t, http.StatusBadRequest, s.upload("giver", "application/pdf", 64).Code)
	assert.Equal(t, http.StatusBadRequest, s.upload("giver", "image/png", storage.MaxImageBytes+1).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/images/nope", "", nil).Code)
}
