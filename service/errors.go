package service

import (
	"fmt"

	"foodshare-api/model"
)

var (
	ErrOwnListing          = fmt.Errorf("%w: you cannot request your own listing", model.ErrInvalidOperation)
	ErrListingNotAvailable = fmt.Errorf("%w: listing is not available", model.ErrInvalidOperation)
	ErrListingNotReserved  = fmt.Errorf("%w: listing is not reserved", model.ErrInvalidOperation)
	ErrListingCompleted    = fmt.Errorf("%w: listing is already completed", model.ErrInvalidOperation)
	ErrNotCreator          = fmt.Errorf("%w: only the creator can change this listing", model.ErrInvalidOperation)
	ErrNotGiver            = fmt.Errorf("%w: only the giver can decide on this request", model.ErrInvalidOperation)
	ErrNotParty            = fmt.Errorf("%w: only the giver or the reserving seeker can do this", model.ErrInvalidOperation)
	ErrNotParticipant      = fmt.Errorf("%w: you are not part of this request", model.ErrInvalidOperation)
	ErrRequestNotPending   = fmt.Errorf("%w: request is no longer pending", model.ErrInvalidOperation)
	ErrChatClosed          = fmt.Errorf("%w: messages open once the request is approved", model.ErrInvalidOperation)

	ErrListingTaken = fmt.Errorf("%w: listing was already reserved by someone else", model.ErrConflict)

	ErrMissingActor = fmt.Errorf("%w: caller identity is required", model.ErrValidation)
)

func checkActor(actor model.Identity) error {
	if actor.ID == "" {
		return ErrMissingActor
	}
	return nil
}
