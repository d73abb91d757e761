package store

import (
	"errors"
	"time"

	"dealroom/api/internal/document"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrVersionConflict = errors.New("store: version conflict")
)

const (
	OfferTypePSA = "psa"
	OfferTypeLOI = "loi"

	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusWithdrawn = "withdrawn"
	OfferStatusCountered = "countered"

	PropertyStatusActive        = "active"
	PropertyStatusUnderContract = "under_contract"

	TransactionStatusActive = "active"
)

type Offer struct {
	ID                 string            `json:"id"`
	PropertyID         string            `json:"propertyId"`
	BuyerID            string            `json:"buyerId"`
	CreatedBy          string            `json:"createdBy"`
	OfferType          string            `json:"offerType"`
	Status             string            `json:"status"`
	CounterToOfferID   *string           `json:"counterToOfferId"`
	CounteredByOfferID *string           `json:"counteredByOfferId"`
	Document           document.Document `json:"document"`
	ExpirationDate     string            `json:"offerExpirationDate,omitempty"`
	ExpirationTime     string            `json:"offerExpirationTime,omitempty"`
	Version            int               `json:"version"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

type Property struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"sellerId"`
	Status    string    `json:"status"`
	Address   string    `json:"address"`
	Price     string    `json:"price,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Step struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DueAt       *time.Time `json:"dueAt"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Required    bool       `json:"required"`
}

type VendorAssignment struct {
	Role     string `json:"role"`
	VendorID string `json:"vendorId"`
}

type Transaction struct {
	ID              string             `json:"id"`
	OfferID         string             `json:"offerId"`
	PropertyID      string             `json:"propertyId"`
	BuyerID         string             `json:"buyerId"`
	SellerID        string             `json:"sellerId"`
	Parties         []string           `json:"parties"`
	AcceptedAt      time.Time          `json:"acceptedAt"`
	Status          string             `json:"status"`
	Steps           []Step             `json:"steps"`
	AssignedVendors []VendorAssignment `json:"assignedVendors"`
	Version         int                `json:"version"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type Vendor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}
