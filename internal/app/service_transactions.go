package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dealroom/api/internal/logger"
	"dealroom/api/internal/steps"
	"dealroom/api/internal/store"
	"dealroom/api/internal/vendors"
)

const unknownVendorName = "Unknown vendor"

type TransactionOptions struct {
	AcceptedAt *time.Time `json:"acceptedAt"`
}

type StepView struct {
	store.Step
	DueStatus *steps.DueStatus `json:"dueStatus"`
}

type VendorView struct {
	Role     string       `json:"role"`
	VendorID string       `json:"vendorId"`
	Vendor   vendors.Info `json:"vendor"`
}

type TransactionView struct {
	store.Transaction
	Steps           []StepView   `json:"steps"`
	AssignedVendors []VendorView `json:"assignedVendors"`
}

// CreateTransaction opens the transaction for an accepted binding offer. It
// is idempotent on the offer: a second call returns the existing id with
// created false and leaves its steps untouched.
func (s *Service) CreateTransaction(ctx context.Context, offer store.Offer, property store.Property, opts TransactionOptions) (string, bool, error) {
	ctx, span := s.startSpan(ctx, "transactions.create")
	defer span.End()
	span.SetAttributes(attribute.String("offer.id", offer.ID))

	if offer.OfferType != store.OfferTypePSA {
		return "", false, invalidStateError("letters of intent do not open transactions", offer.Status)
	}
	now := s.now()
	acceptedAt := now
	if opts.AcceptedAt != nil {
		acceptedAt = *opts.AcceptedAt
	}
	id, created, err := s.store.CreateTransaction(ctx, s.newTransaction(offer, property, acceptedAt, now))
	if err != nil {
		return "", false, storeError(err, "transaction")
	}
	return id, created, nil
}

// EnsureTransaction is the retry path for an accepted binding offer whose
// caller lost the accept response. The acceptance instant is the offer's
// last write.
func (s *Service) EnsureTransaction(ctx context.Context, offerID string) (string, bool, error) {
	offer, err := s.store.GetOffer(ctx, offerID)
	if err != nil {
		return "", false, storeError(err, "offer")
	}
	if offer.Status != store.OfferStatusAccepted {
		return "", false, invalidStateError("offer has not been accepted", offer.Status)
	}
	property, err := s.store.GetProperty(ctx, offer.PropertyID)
	if err != nil {
		return "", false, storeError(err, "property")
	}
	acceptedAt := offer.UpdatedAt
	return s.CreateTransaction(ctx, offer, property, TransactionOptions{AcceptedAt: &acceptedAt})
}

// UpdateStepComplete marks one step completed or reopens it.
func (s *Service) UpdateStepComplete(ctx context.Context, txnID, stepID string, completed bool) (store.Transaction, error) {
	ctx, span := s.startSpan(ctx, "transactions.step")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txnID), attribute.String("step.id", stepID))

	return s.mutateTransaction(ctx, txnID, func(txn store.Transaction, now time.Time) (store.Transaction, error) {
		updated, found := steps.SetComplete(txn.Steps, stepID, completed, now)
		if !found {
			return store.Transaction{}, notFoundError("step")
		}
		if err := s.store.UpdateTransactionSteps(ctx, txn.ID, txn.Version, updated, now); err != nil {
			return store.Transaction{}, err
		}
		txn.Steps = updated
		return txn, nil
	})
}

// SetAssignedVendor binds role to vendorID, or clears the role when vendorID
// is nil or blank.
func (s *Service) SetAssignedVendor(ctx context.Context, txnID, role string, vendorID *string) (store.Transaction, error) {
	ctx, span := s.startSpan(ctx, "transactions.vendor")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txnID), attribute.String("vendor.role", role))

	role = strings.TrimSpace(role)
	if role == "" {
		return store.Transaction{}, validationError("role is required")
	}
	id := ""
	if vendorID != nil {
		id = strings.TrimSpace(*vendorID)
	}

	return s.mutateTransaction(ctx, txnID, func(txn store.Transaction, now time.Time) (store.Transaction, error) {
		updated := steps.AssignVendor(txn.AssignedVendors, role, id)
		if err := s.store.UpdateTransactionVendors(ctx, txn.ID, txn.Version, updated, now); err != nil {
			return store.Transaction{}, err
		}
		txn.AssignedVendors = updated
		return txn, nil
	})
}

// mutateTransaction loads the transaction, applies write and retries on a
// version conflict. Re-applying onto fresh state keeps the other writer's
// change.
func (s *Service) mutateTransaction(ctx context.Context, txnID string, write func(store.Transaction, time.Time) (store.Transaction, error)) (store.Transaction, error) {
	var result store.Transaction
	err := s.withLock(ctx, "transaction", txnID, func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt < maxCASAttempts; attempt++ {
			txn, err := s.store.GetTransaction(ctx, txnID)
			if err != nil {
				return storeError(err, "transaction")
			}
			now := s.now()
			updated, err := write(txn, now)
			if errors.Is(err, store.ErrVersionConflict) {
				lastErr = err
				logger.FromContext(ctx).Debug("transaction version conflict, retrying", "transaction_id", txnID, "attempt", attempt+1)
				continue
			}
			if err != nil {
				return storeError(err, "transaction")
			}
			updated.Version++
			updated.UpdatedAt = now
			result = updated
			return nil
		}
		return storeError(lastErr, "transaction")
	})
	if err != nil {
		return store.Transaction{}, err
	}
	return result, nil
}

func (s *Service) TransactionView(ctx context.Context, txnID string) (TransactionView, error) {
	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		return TransactionView{}, storeError(err, "transaction")
	}
	return s.viewOf(ctx, txn), nil
}

func (s *Service) TransactionViewByOffer(ctx context.Context, offerID string) (TransactionView, error) {
	txn, err := s.store.GetTransactionByOffer(ctx, offerID)
	if err != nil {
		return TransactionView{}, storeError(err, "transaction")
	}
	return s.viewOf(ctx, txn), nil
}

func (s *Service) viewOf(ctx context.Context, txn store.Transaction) TransactionView {
	now := s.now()
	view := TransactionView{
		Transaction:     txn,
		Steps:           make([]StepView, 0, len(txn.Steps)),
		AssignedVendors: make([]VendorView, 0, len(txn.AssignedVendors)),
	}
	for _, step := range txn.Steps {
		item := StepView{Step: step}
		if status := steps.StatusOf(step, now); status != steps.DueNone {
			item.DueStatus = &status
		}
		view.Steps = append(view.Steps, item)
	}
	for _, assignment := range txn.AssignedVendors {
		view.AssignedVendors = append(view.AssignedVendors, VendorView{
			Role:     assignment.Role,
			VendorID: assignment.VendorID,
			Vendor:   s.resolveVendor(ctx, assignment.VendorID),
		})
	}
	return view
}

func (s *Service) resolveVendor(ctx context.Context, vendorID string) vendors.Info {
	unknown := vendors.Info{ID: vendorID, Name: unknownVendorName}
	if s.vendors == nil {
		return unknown
	}
	info, err := s.vendors.Resolve(ctx, vendorID)
	if err != nil {
		logger.FromContext(ctx).Warn("resolve vendor", "vendor_id", vendorID, "error", err)
		return unknown
	}
	return info
}
