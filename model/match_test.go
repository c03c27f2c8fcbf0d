package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatchRequest(t *testing.T) {
	l := &FoodListing{ID: "l1", Title: "Bread", ImageRef: "img", CreatorID: "gina", CreatorDisplayName: "Gina"}
	m := NewMatchRequest(l, NewIdentity("sam", "Sam"))

	assert.Equal(t, MatchInterested, m.Status)
	assert.Equal(t, "l1", m.ListingID)
	assert.Equal(t, "Bread", m.ListingTitle)
	assert.Equal(t, "gina", m.GiverID)
	assert.Equal(t, "Sam", m.SeekerDisplayName)
	assert.True(t, m.Active())

	assert.True(t, m.IsParticipant("gina"))
	assert.True(t, m.IsParticipant("sam"))
	assert.False(t, m.IsParticipant("sue"))
	assert.Equal(t, "Sam", m.Counterpart("gina"))
	assert.Equal(t, "Gina", m.Counterpart("sam"))

	m.Status = MatchRejected
	assert.False(t, m.Active())
}

func TestParseMatchStatus(t *testing.T) {
	for in, want := range map[string]MatchStatus{
		"":           "",
		"interested": MatchInterested,
		" Approved ": MatchApproved,
		"REJECTED":   MatchRejected,
		"completed":  MatchCompleted,
	} {
		got, ok := ParseMatchStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseMatchStatus("pending")
	assert.False(t, ok)
}

func TestValidateMessageText(t *testing.T) {
	text, err := ValidateMessageText("  see you at 6  ")
	require.NoError(t, err)
	assert.Equal(t, "see you at 6", text)

	_, err = ValidateMessageText(" \n ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateMessageText(strings.Repeat("ü", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ValidateMessageText(strings.Repeat("ü", MaxMessageLength))
	assert.NoError(t, err)
}
