package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingReserved  ListingStatus = "reserved"
	ListingCompleted ListingStatus = "completed"
)

type Category string

const (
	CategoryProduce       Category = "produce"
	CategoryBakery        Category = "bakery"
	CategoryDairy         Category = "dairy"
	CategoryMeatFish      Category = "meat_fish"
	CategoryPrepared      Category = "prepared"
	CategoryPantryStaples Category = "pantry_staples"
	CategoryBeverages     Category = "beverages"
	CategoryOther         Category = "other"
)

var validCategories = map[Category]bool{
	CategoryProduce: true, CategoryBakery: true, CategoryDairy: true, CategoryMeatFish: true,
	CategoryPrepared: true, CategoryPantryStaples: true, CategoryBeverages: true, CategoryOther: true,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool { return validCategories[c] }

type StorageCondition string

const (
	StoragePantry       StorageCondition = "pantry"
	StorageRefrigerated StorageCondition = "refrigerated"
	StorageFrozen       StorageCondition = "frozen"
)

type PackageStatus string

const (
	PackageSealed PackageStatus = "sealed"
	PackageOpened PackageStatus = "opened"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxExpiryLabelLength = 40

	// MaxPriceCents keeps price arithmetic far from int64 overflow.
	MaxPriceCents int64 = 100_000_000
)

// FoodListing is a posted food item. The document ID is not stored in the document body.
type FoodListing struct {
	ID                    string           `json:"id" firestore:"-"`
	Title                 string           `json:"title" firestore:"title"`
	Description           string           `json:"description" firestore:"description"`
	PriceCents            int64            `json:"priceCents" firestore:"priceCents"`
	OriginalPriceCents    *int64           `json:"originalPriceCents,omitempty" firestore:"originalPriceCents"`
	Category              Category         `json:"category" firestore:"category"`
	StorageCondition      StorageCondition `json:"storageCondition" firestore:"storageCondition"`
	PackageStatus         PackageStatus    `json:"packageStatus" firestore:"packageStatus"`
	ExpiryLabel           string           `json:"expiryLabel" firestore:"expiryLabel"`
	Location              Location         `json:"location" firestore:"location"`
	ImageRef              string           `json:"imageRef" firestore:"imageRef"`
	CreatorID             string           `json:"creatorId" firestore:"createdBy"`
	CreatorDisplayName    string           `json:"creatorDisplayName" firestore:"creatorName"`
	Status                ListingStatus    `json:"status" firestore:"status"`
	ReservedBy            *string          `json:"reservedBy,omitempty" firestore:"reservedBy"`
	ReservedByDisplayName *string          `json:"reservedByDisplayName,omitempty" firestore:"reservedByUsername"`
	CreatedAt             time.Time        `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt             time.Time        `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// IsFree is true for giveaways.
func (l *FoodListing) IsFree() bool { return l.PriceCents == 0 }

// IsParty reports whether userID is the giver or the reserving seeker.
func (l *FoodListing) IsParty(userID string) bool {
	if userID == l.CreatorID {
		return true
	}
	return l.ReservedBy != nil && *l.ReservedBy == userID
}

// CheckReservation verifies the reservedBy/status coupling.
func (l *FoodListing) CheckReservation() error {
	held := l.Status == ListingReserved || l.Status == ListingCompleted
	if held != (l.ReservedBy != nil) {
		return fmt.Errorf("%w: listing %s is %s with reservedBy=%v", ErrValidation, l.ID, l.Status, l.ReservedBy != nil)
	}
	return nil
}

// ListingInput carries the content fields a giver controls.
type ListingInput struct {
	Title              string           `json:"title" binding:"required"`
	Description        string           `json:"description" binding:"required"`
	PriceCents         int64            `json:"priceCents"`
	OriginalPriceCents *int64           `json:"originalPriceCents,omitempty"`
	Category           Category         `json:"category" binding:"required"`
	StorageCondition   StorageCondition `json:"storageCondition" binding:"required"`
	PackageStatus      PackageStatus    `json:"packageStatus" binding:"required"`
	ExpiryLabel        string           `json:"expiryLabel"`
	Location           Location         `json:"location"`
	ImageRef           string           `json:"imageRef" binding:"required"`
}

// Normalize trims free text in place.
func (in *ListingInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.ExpiryLabel = strings.TrimSpace(in.ExpiryLabel)
	in.ImageRef = strings.TrimSpace(in.ImageRef)
	in.Location.Address = strings.TrimSpace(in.Location.Address)
}

// Validate runs the type and range checks a listing must pass before it is stored.
func (in *ListingInput) Validate() error {
	switch {
	case in.Title == "":
		return invalid("title is required")
	case utf8.RuneCountInString(in.Title) > MaxTitleLength:
		return invalid("title must be at most %d characters", MaxTitleLength)
	case in.Description == "":
		return invalid("description is required")
	case utf8.RuneCountInString(in.Description) > MaxDescriptionLength:
		return invalid("description must be at most %d characters", MaxDescriptionLength)
	case utf8.RuneCountInString(in.ExpiryLabel) > MaxExpiryLabelLength:
		return invalid("expiry label must be at most %d characters", MaxExpiryLabelLength)
	case in.PriceCents < 0:
		return invalid("price must not be negative")
	case in.PriceCents > MaxPriceCents:
		return invalid("price must be at most %d cents", MaxPriceCents)
	case in.OriginalPriceCents != nil && *in.OriginalPriceCents <= in.PriceCents:
		return invalid("original price must exceed price")
	case in.OriginalPriceCents != nil && *in.OriginalPriceCents > MaxPriceCents:
		return invalid("original price must be at most %d cents", MaxPriceCents)
	case !in.Category.Valid():
		return invalid("invalid category %q", in.Category)
	case in.ImageRef == "":
		return invalid("image is required")
	}

	switch in.StorageCondition {
	case StoragePantry, StorageRefrigerated, StorageFrozen:
	default:
		return invalid("invalid storage condition %q", in.StorageCondition)
	}

	switch in.PackageStatus {
	case PackageSealed, PackageOpened:
	default:
		return invalid("invalid package status %q", in.PackageStatus)
	}

	if c := in.Location.Coordinates; c != nil && !c.Valid() {
		return invalid("coordinates out of range")
	}
	return nil
}

// Apply copies the content fields onto l.
func (in *ListingInput) Apply(l *FoodListing) {
	l.Title = in.Title
	l.Description = in.Description
	l.PriceCents = in.PriceCents
	l.OriginalPriceCents = in.OriginalPriceCents
	l.Category = in.Category
	l.StorageCondition = in.StorageCondition
	l.PackageStatus = in.PackageStatus
	l.ExpiryLabel = in.ExpiryLabel
	l.Location = in.Location
	l.ImageRef = in.ImageRef
}

// Precondition is what a conditional status update expects to find on the stored listing.
// An empty ReservedBy is not checked.
type Precondition struct {
	Status     ListingStatus
	ReservedBy string
}

// Holds reports whether l currently satisfies p.
func (p Precondition) Holds(l *FoodListing) bool {
	if l.Status != p.Status {
		return false
	}
	if p.ReservedBy == "" {
		return true
	}
	return l.ReservedBy != nil && *l.ReservedBy == p.ReservedBy
}

// StatusChange is the status transition written by a conditional update.
// Reserved sets the reservation, Available clears it, Completed keeps it.
type StatusChange struct {
	Status                ListingStatus
	ReservedBy            string
	ReservedByDisplayName string
}

func ReserveFor(seeker Identity) StatusChange {
	return StatusChange{Status: ListingReserved, ReservedBy: seeker.ID, ReservedByDisplayName: seeker.DisplayName}
}

func Release() StatusChange  { return StatusChange{Status: ListingAvailable} }
func Complete() StatusChange { return StatusChange{Status: ListingCompleted} }

// Apply performs the change on an in-memory listing.
func (c StatusChange) Apply(l *FoodListing, now time.Time) {
	l.Status = c.Status
	switch c.Status {
	case ListingAvailable:
		l.ReservedBy = nil
		l.ReservedByDisplayName = nil
	case ListingReserved:
		by, name := c.ReservedBy, c.ReservedByDisplayName
		l.ReservedBy = &by
		l.ReservedByDisplayName = &name
	}
	l.UpdatedAt = now
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
