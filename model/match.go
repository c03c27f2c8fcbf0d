package model

import (
	"strings"
	"time"
	"unicode/utf8"
)

type MatchStatus string

const (
	MatchInterested MatchStatus = "interested"
	MatchApproved   MatchStatus = "approved"
	MatchRejected   MatchStatus = "rejected"
	MatchCompleted  MatchStatus = "completed"
)

// ParseMatchStatus accepts "" (any) or one of the four statuses.
func ParseMatchStatus(s string) (MatchStatus, bool) {
	switch st := MatchStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case "", MatchInterested, MatchApproved, MatchRejected, MatchCompleted:
		return st, true
	}
	return "", false
}

// MatchRequest is a seeker's request for a listing. Listing title and image are
// copied at request time so inboxes render without reading the listing.
type MatchRequest struct {
	ID                string      `json:"id" firestore:"-"`
	ListingID         string      `json:"listingId" firestore:"foodId"`
	ListingTitle      string      `json:"listingTitle" firestore:"foodTitle"`
	ListingImageRef   string      `json:"listingImageRef" firestore:"foodImage"`
	GiverID           string      `json:"giverId" firestore:"giverId"`
	GiverDisplayName  string      `json:"giverDisplayName" firestore:"giverUsername"`
	SeekerID          string      `json:"seekerId" firestore:"seekerId"`
	SeekerDisplayName string      `json:"seekerDisplayName" firestore:"seekerUsername"`
	Status            MatchStatus `json:"status" firestore:"status"`
	CreatedAt         time.Time   `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt         time.Time   `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// NewMatchRequest snapshots the listing for seeker.
func NewMatchRequest(l *FoodListing, seeker Identity) *MatchRequest {
	return &MatchRequest{
		ListingID:         l.ID,
		ListingTitle:      l.Title,
		ListingImageRef:   l.ImageRef,
		GiverID:           l.CreatorID,
		GiverDisplayName:  l.CreatorDisplayName,
		SeekerID:          seeker.ID,
		SeekerDisplayName: seeker.DisplayName,
		Status:            MatchInterested,
	}
}

// Active is true for every status except rejected.
func (m *MatchRequest) Active() bool { return m.Status != MatchRejected }

func (m *MatchRequest) IsParticipant(userID string) bool {
	return userID == m.GiverID || userID == m.SeekerID
}

// Counterpart returns the display name of the other participant.
func (m *MatchRequest) Counterpart(userID string) string {
	if userID == m.GiverID {
		return m.SeekerDisplayName
	}
	return m.GiverDisplayName
}

// Chat is an approved request as shown in a participant's chat list.
type Chat struct {
	MatchID         string      `json:"matchId"`
	ListingID       string      `json:"listingId"`
	ListingTitle    string      `json:"listingTitle"`
	ListingImageRef string      `json:"listingImageRef"`
	Name            string      `json:"name"`
	IsGiver         bool        `json:"isGiver"`
	Status          MatchStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
}

const MaxMessageLength = 1000

// Message is one line in the conversation attached to a request.
type Message struct {
	ID                string    `json:"id" firestore:"-"`
	MatchID           string    `json:"matchId" firestore:"-"`
	SenderID          string    `json:"senderId" firestore:"senderId"`
	SenderDisplayName string    `json:"senderName" firestore:"senderName"`
	Text              string    `json:"text" firestore:"text"`
	CreatedAt         time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// ValidateMessageText trims text and checks its length.
func ValidateMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("message text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", invalid("message must be at most %d characters", MaxMessageLength)
	}
	return text, nil
}
