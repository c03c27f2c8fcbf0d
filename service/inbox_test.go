package service

import (
	"context"
	"strings"
	"testing"

	"foodshare-api/events"
	"foodshare-api/model"
	"foodshare-api/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInboxFixture(t *testing.T) (*fixture, *Inbox) {
	t.Helper()
	f := newFixture(t)
	return f, NewInbox(f.store, f.store, f.publisher)
}

func TestInbox_IncomingAndOutgoing(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	l := f.listing(t)

	m1, err := f.workflow.RequestListing(ctx, seeker, l.ID)
	require.NoError(t, err)
	m2, err := f.workflow.RequestListing(ctx, seeker2, l.ID)
	require.NoError(t, err)
	_, err = f.workflow.Reject(ctx, giver, m1.ID)
	require.NoError(t, err)

	all, err := inbox.IncomingRequests(ctx, giver, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := inbox.IncomingRequests(ctx, giver, model.MatchInterested)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m2.ID, pending[0].ID)

	mine, err := inbox.OutgoingRequests(ctx, seeker, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.MatchRejected, mine[0].Status)
}

func TestInbox_Counts(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	l1 := f.listing(t)
	l2 := f.listing(t)

	_, err := f.workflow.RequestListing(ctx, seeker, l1.ID)
	require.NoError(t, err)
	_, err = f.workflow.RequestListing(ctx, seeker, l2.ID)
	require.NoError(t, err)
	_, err = f.workflow.RequestListing(ctx, seeker2, l1.ID)
	require.NoError(t, err)

	giverCounts, err := inbox.Counts(ctx, giver)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{PendingIncoming: 3, PendingOutgoing: 0}, giverCounts)

	seekerCounts, err := inbox.Counts(ctx, seeker)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{PendingIncoming: 0, PendingOutgoing: 2}, seekerCounts)
}

func TestInbox_Chats(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	_, m := f.approved(t)

	giverChats, err := inbox.Chats(ctx, giver)
	require.NoError(t, err)
	require.Len(t, giverChats, 1)
	assert.Equal(t, m.ID, giverChats[0].MatchID)
	assert.Equal(t, "Sam", giverChats[0].Name)
	assert.True(t, giverChats[0].IsGiver)

	seekerChats, err := inbox.Chats(ctx, seeker)
	require.NoError(t, err)
	require.Len(t, seekerChats, 1)
	assert.Equal(t, "Gina", seekerChats[0].Name)
	assert.False(t, seekerChats[0].IsGiver)

	none, err := inbox.Chats(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInbox_Messages(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	_, m := f.approved(t)

	_, err := inbox.PostMessage(ctx, seeker, m.ID, "  Can I come at six?  ")
	require.NoError(t, err)
	reply, err := inbox.PostMessage(ctx, giver, m.ID, "Sure")
	require.NoError(t, err)
	assert.Equal(t, "Gina", reply.SenderDisplayName)

	msgs, err := inbox.Messages(ctx, giver, m.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Can I come at six?", msgs[0].Text)
	assert.Equal(t, seeker.ID, msgs[0].SenderID)
	assert.Equal(t, "Sure", msgs[1].Text)

	assert.Contains(t, f.publisher.types(), events.MessagePosted)
}

func TestInbox_MessageGuards(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	l := f.listing(t)
	pending, err := f.workflow.RequestListing(ctx, seeker, l.ID)
	require.NoError(t, err)

	_, err = inbox.PostMessage(ctx, seeker, pending.ID, "hello")
	assert.ErrorIs(t, err, ErrChatClosed)

	_, err = f.workflow.Approve(ctx, giver, pending.ID)
	require.NoError(t, err)

	_, err = inbox.PostMessage(ctx, other, pending.ID, "hello")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = inbox.Messages(ctx, other, pending.ID, 0)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = inbox.PostMessage(ctx, seeker, pending.ID, "   ")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = inbox.PostMessage(ctx, seeker, pending.ID, strings.Repeat("a", model.MaxMessageLength+1))
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = inbox.Messages(ctx, seeker, "missing", 0)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestInbox_CompletedRequestKeepsChat(t *testing.T) {
	f, inbox := newInboxFixture(t)
	ctx := context.Background()
	l, m := f.approved(t)
	_, err := f.workflow.CompletePickup(ctx, giver, l.ID)
	require.NoError(t, err)

	_, err = inbox.PostMessage(ctx, seeker, m.ID, "Thanks!")
	require.NoError(t, err)

	n, err := f.store.CountMatches(ctx, repository.MatchFilter{Status: model.MatchCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
