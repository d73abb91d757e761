package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"dealroom/api/internal/archive"
	"dealroom/api/internal/diff"
	"dealroom/api/internal/document"
	"dealroom/api/internal/expiration"
	"dealroom/api/internal/logger"
	"dealroom/api/internal/rbac"
	"dealroom/api/internal/search"
	"dealroom/api/internal/steps"
	"dealroom/api/internal/store"
	"dealroom/api/internal/util"
)

type CreateOfferInput struct {
	PropertyID     string          `json:"propertyId"`
	BuyerID        string          `json:"buyerId"`
	CreatedBy      string          `json:"createdBy"`
	OfferType      string          `json:"offerType"`
	Document       json.RawMessage `json:"document"`
	ExpirationDate string          `json:"offerExpirationDate"`
	ExpirationTime string          `json:"offerExpirationTime"`
}

// CounterOfferInput is the counter form. Only the block matching the
// original's document kind is read.
type CounterOfferInput struct {
	ActorID        string                `json:"actorId"`
	LOI            json.RawMessage       `json:"loi"`
	PSA            json.RawMessage       `json:"psa"`
	Legacy         *document.LegacyPatch `json:"legacy"`
	ExpirationDate *string               `json:"offerExpirationDate"`
	ExpirationTime *string               `json:"offerExpirationTime"`
}

type AcceptOptions struct {
	AcceptedAt *time.Time `json:"acceptedAt"`
}

type AcceptResult struct {
	Offer              store.Offer `json:"offer"`
	TransactionID      *string     `json:"transactionId"`
	TransactionCreated bool        `json:"transactionCreated"`
}

type CompareResult struct {
	OfferID         string     `json:"offerId"`
	PreviousOfferID *string    `json:"previousOfferId"`
	Rows            []diff.Row `json:"rows"`
}

type CountdownView struct {
	OfferID   string     `json:"offerId"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Text      string     `json:"text"`
	Expired   bool       `json:"expired"`
}

func (s *Service) CreateOffer(ctx context.Context, input CreateOfferInput) (store.Offer, error) {
	ctx, span := s.startSpan(ctx, "offers.create")
	defer span.End()

	propertyID := strings.TrimSpace(input.PropertyID)
	buyerID := strings.TrimSpace(input.BuyerID)
	if propertyID == "" {
		return store.Offer{}, validationError("propertyId is required")
	}
	if buyerID == "" {
		return store.Offer{}, validationError("buyerId is required")
	}
	offerType := strings.ToLower(strings.TrimSpace(input.OfferType))
	if offerType != store.OfferTypePSA && offerType != store.OfferTypeLOI {
		return store.Offer{}, validationError("offerType must be psa or loi")
	}
	doc, err := decodeOfferDocument(offerType, input.Document)
	if err != nil {
		return store.Offer{}, err
	}
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		return store.Offer{}, storeError(err, "property")
	}

	createdBy := strings.TrimSpace(input.CreatedBy)
	if createdBy == "" {
		createdBy = buyerID
	}
	now := s.now()
	offer := store.Offer{
		ID:             util.NewID("off"),
		PropertyID:     propertyID,
		BuyerID:        buyerID,
		CreatedBy:      createdBy,
		OfferType:      offerType,
		Status:         store.OfferStatusPending,
		Document:       doc,
		ExpirationDate: strings.TrimSpace(input.ExpirationDate),
		ExpirationTime: strings.TrimSpace(input.ExpirationTime),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	span.SetAttributes(attribute.String("offer.id", offer.ID), attribute.String("offer.type", offerType))
	if err := s.store.InsertOffer(ctx, offer); err != nil {
		return store.Offer{}, storeError(err, "offer")
	}

	s.afterCommit(ctx, createdBy, fmt.Sprintf("Create %s offer %s", offerType, offer.ID), offer)
	return offer, nil
}

// decodeOfferDocument reads the tagged document and checks it fits the
// offer type. An omitted document yields the type's defaults.
func decodeOfferDocument(offerType string, raw json.RawMessage) (document.Document, error) {
	var doc document.Document
	if len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null" {
		if offerType == store.OfferTypeLOI {
			doc = document.FromLOI(document.DefaultLOI())
		} else {
			doc = document.FromPSA(document.DefaultPSA())
		}
	} else if err := json.Unmarshal(raw, &doc); err != nil {
		return document.Document{}, validationError("invalid document: " + err.Error())
	}

	switch offerType {
	case store.OfferTypeLOI:
		if doc.Kind != document.KindLOI {
			return document.Document{}, validationError(fmt.Sprintf("document kind %q does not match offer type loi", doc.Kind))
		}
	case store.OfferTypePSA:
		if doc.Kind != document.KindPSA && doc.Kind != document.KindLegacy {
			return document.Document{}, validationError(fmt.Sprintf("document kind %q does not match offer type psa", doc.Kind))
		}
	}
	if err := doc.Validate(); err != nil {
		return document.Document{}, validationError(err.Error())
	}
	return doc, nil
}

func (s *Service) GetOfferByID(ctx context.Context, id string) (store.Offer, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return store.Offer{}, storeError(err, "offer")
	}
	return offer, nil
}

func (s *Service) GetOffersByProperty(ctx context.Context, propertyID string) ([]store.Offer, error) {
	offers, err := s.store.ListOffersByProperty(ctx, propertyID)
	if err != nil {
		return nil, storeError(err, "property")
	}
	return offers, nil
}

func (s *Service) GetOffersByBuyer(ctx context.Context, buyerID string) ([]store.Offer, error) {
	offers, err := s.store.ListOffersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, storeError(err, "buyer")
	}
	return offers, nil
}

// AcceptOffer accepts a pending offer. A binding offer also puts the
// property under contract and opens its transaction in the same store
// transaction.
func (s *Service) AcceptOffer(ctx context.Context, id string, opts AcceptOptions) (AcceptResult, error) {
	ctx, span := s.startSpan(ctx, "offers.accept")
	defer span.End()
	span.SetAttributes(attribute.String("offer.id", id))

	var result AcceptResult
	err := s.withLock(ctx, "offer", id, func(ctx context.Context) error {
		offer, err := s.store.GetOffer(ctx, id)
		if err != nil {
			return storeError(err, "offer")
		}
		if offer.Status != store.OfferStatusPending {
			return invalidStateError("only pending offers can be accepted", offer.Status)
		}

		now := s.now()
		if offer.OfferType == store.OfferTypeLOI {
			if err := s.store.TransitionOffer(ctx, offer.ID, offer.Version, store.OfferStatusAccepted, now); err != nil {
				return storeError(err, "offer")
			}
		} else {
			property, err := s.store.GetProperty(ctx, offer.PropertyID)
			if err != nil {
				return storeError(err, "property")
			}
			acceptedAt := now
			if opts.AcceptedAt != nil {
				acceptedAt = *opts.AcceptedAt
			}
			txn := s.newTransaction(offer, property, acceptedAt, now)
			txnID, created, err := s.store.AcceptPSA(ctx, offer.ID, offer.Version, txn, now)
			if err != nil {
				return storeError(err, "offer")
			}
			result.TransactionID = &txnID
			result.TransactionCreated = created
		}

		offer.Status = store.OfferStatusAccepted
		offer.Version++
		offer.UpdatedAt = now
		result.Offer = offer
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}

	s.afterCommit(ctx, "system", "Accept offer "+id, result.Offer)
	return result, nil
}

func (s *Service) RejectOffer(ctx context.Context, id string) (store.Offer, error) {
	return s.closeOffer(ctx, id, store.OfferStatusRejected, "Reject offer ")
}

func (s *Service) WithdrawOffer(ctx context.Context, id string) (store.Offer, error) {
	return s.closeOffer(ctx, id, store.OfferStatusWithdrawn, "Withdraw offer ")
}

func (s *Service) closeOffer(ctx context.Context, id, status, message string) (store.Offer, error) {
	ctx, span := s.startSpan(ctx, "offers."+status)
	defer span.End()
	span.SetAttributes(attribute.String("offer.id", id))

	var offer store.Offer
	err := s.withLock(ctx, "offer", id, func(ctx context.Context) error {
		current, err := s.store.GetOffer(ctx, id)
		if err != nil {
			return storeError(err, "offer")
		}
		if current.Status != store.OfferStatusPending {
			return invalidStateError("only pending offers can be "+status, current.Status)
		}
		now := s.now()
		if err := s.store.TransitionOffer(ctx, current.ID, current.Version, status, now); err != nil {
			return storeError(err, "offer")
		}
		current.Status = status
		current.Version++
		current.UpdatedAt = now
		offer = current
		return nil
	})
	if err != nil {
		return store.Offer{}, err
	}

	s.afterCommit(ctx, "system", message+id, offer)
	return offer, nil
}

// CounterOffer answers a pending offer with a new full snapshot and marks the
// original countered. Only the offer's buyer and the property's current seller
// may counter.
func (s *Service) CounterOffer(ctx context.Context, originalID string, input CounterOfferInput, actorID string) (store.Offer, error) {
	ctx, span := s.startSpan(ctx, "offers.counter")
	defer span.End()
	span.SetAttributes(attribute.String("offer.id", originalID))

	actorID = strings.TrimSpace(actorID)
	var original, counter store.Offer
	err := s.withLock(ctx, "offer", originalID, func(ctx context.Context) error {
		var err error
		original, err = s.store.GetOffer(ctx, originalID)
		if err != nil {
			return storeError(err, "offer")
		}
		if err := s.authorize(ctx, original, actorID, rbac.ActionCounter); err != nil {
			return err
		}
		if original.Status != store.OfferStatusPending {
			return invalidStateError("only pending offers can be countered", original.Status)
		}

		doc, err := counterDocument(original.Document, input)
		if err != nil {
			return err
		}

		now := s.now()
		counterTo := original.ID
		counter = store.Offer{
			ID:               util.NewID("off"),
			PropertyID:       original.PropertyID,
			BuyerID:          original.BuyerID,
			CreatedBy:        actorID,
			OfferType:        original.OfferType,
			Status:           store.OfferStatusPending,
			CounterToOfferID: &counterTo,
			Document:         doc,
			ExpirationDate:   original.ExpirationDate,
			ExpirationTime:   original.ExpirationTime,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if input.ExpirationDate != nil {
			counter.ExpirationDate = strings.TrimSpace(*input.ExpirationDate)
		}
		if input.ExpirationTime != nil {
			counter.ExpirationTime = strings.TrimSpace(*input.ExpirationTime)
		}

		if err := s.store.CounterOffer(ctx, original.ID, original.Version, counter, now); err != nil {
			return storeError(err, "offer")
		}
		original.Status = store.OfferStatusCountered
		counteredBy := counter.ID
		original.CounteredByOfferID = &counteredBy
		original.Version++
		original.UpdatedAt = now
		return nil
	})
	if err != nil {
		return store.Offer{}, err
	}

	s.afterCommit(ctx, actorID, fmt.Sprintf("Counter offer %s with %s", original.ID, counter.ID), original, counter)
	return counter, nil
}

// counterDocument builds the counter's document from the original's kind.
// LOI and structured PSA forms replace the whole document; the legacy form
// only overrides submitted fields.
func counterDocument(original document.Document, input CounterOfferInput) (document.Document, error) {
	var doc document.Document
	switch original.Kind {
	case document.KindLOI:
		if isBlankJSON(input.LOI) {
			return document.Document{}, validationError("loi form is required to counter a letter of intent")
		}
		loi, err := document.DecodeLOI(input.LOI)
		if err != nil {
			return document.Document{}, validationError(err.Error())
		}
		doc = document.FromLOI(loi)
	case document.KindPSA:
		if isBlankJSON(input.PSA) {
			return document.Document{}, validationError("psa form is required to counter a purchase agreement")
		}
		psa, err := document.DecodePSA(input.PSA)
		if err != nil {
			return document.Document{}, validationError(err.Error())
		}
		doc = document.FromPSA(psa)
	case document.KindLegacy:
		base := document.DefaultLegacyOffer()
		if original.Legacy != nil {
			base = *original.Legacy
		}
		var patch document.LegacyPatch
		if input.Legacy != nil {
			patch = *input.Legacy
		}
		doc = document.FromLegacy(patch.Apply(base))
	default:
		return document.Document{}, validationError(fmt.Sprintf("cannot counter a %q document", original.Kind))
	}
	if err := doc.Validate(); err != nil {
		return document.Document{}, validationError(err.Error())
	}
	return doc, nil
}

func isBlankJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// GetOfferChain returns every offer in id's negotiation chain, root first.
func (s *Service) GetOfferChain(ctx context.Context, id string) ([]store.Offer, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return nil, storeError(err, "offer")
	}
	seen := map[string]bool{offer.ID: true}

	var earlier []store.Offer
	for cur := offer; cur.CounterToOfferID != nil; {
		prev, ok, err := s.chainLink(ctx, *cur.CounterToOfferID, seen)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		earlier = append(earlier, prev)
		cur = prev
	}

	chain := make([]store.Offer, 0, len(earlier)+1)
	for i := len(earlier) - 1; i >= 0; i-- {
		chain = append(chain, earlier[i])
	}
	chain = append(chain, offer)

	for cur := offer; cur.CounteredByOfferID != nil; {
		next, ok, err := s.chainLink(ctx, *cur.CounteredByOfferID, seen)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}

// chainLink loads one neighbour in a chain. ok is false for a cycle or a
// dangling reference.
func (s *Service) chainLink(ctx context.Context, id string, seen map[string]bool) (store.Offer, bool, error) {
	if seen[id] {
		logger.FromContext(ctx).Warn("offer chain cycle", "offer_id", id)
		return store.Offer{}, false, nil
	}
	seen[id] = true
	offer, err := s.store.GetOffer(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		logger.FromContext(ctx).Warn("offer chain dangling reference", "offer_id", id)
		return store.Offer{}, false, nil
	}
	if err != nil {
		return store.Offer{}, false, storeError(err, "offer")
	}
	return offer, true, nil
}

// CompareWithPrevious diffs an offer against the offer it counters. A root
// offer has no previous offer and no rows.
func (s *Service) CompareWithPrevious(ctx context.Context, id string) (CompareResult, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return CompareResult{}, storeError(err, "offer")
	}
	result := CompareResult{OfferID: offer.ID, Rows: []diff.Row{}}
	if offer.CounterToOfferID == nil {
		return result, nil
	}
	previous, err := s.store.GetOffer(ctx, *offer.CounterToOfferID)
	if err != nil {
		return CompareResult{}, storeError(err, "previous offer")
	}
	result.PreviousOfferID = &previous.ID
	result.Rows = diff.Diff(previous.Document, offer.Document)
	return result, nil
}

// AuthorizeRead checks that actorID is a party to offer id. An empty actor
// is not checked; identity is asserted by the gateway in front of the API.
func (s *Service) AuthorizeRead(ctx context.Context, id, actorID string) error {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil
	}
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return storeError(err, "offer")
	}
	return s.authorize(ctx, offer, actorID, rbac.ActionRead)
}

// authorize resolves the actor's role from the offer's buyer and the
// property's current seller.
func (s *Service) authorize(ctx context.Context, offer store.Offer, actorID string, action rbac.Action) error {
	property, err := s.store.GetProperty(ctx, offer.PropertyID)
	if err != nil {
		return storeError(err, "property")
	}
	if rbac.Can(rbac.RoleFor(actorID, offer.BuyerID, property.SellerID), action) {
		return nil
	}
	if action == rbac.ActionCounter {
		return permissionDenied("only the buyer or the seller can counter this offer")
	}
	return permissionDenied("only the buyer or the seller can view this offer")
}

// IsOfferExpired is advisory; acceptance never consults it.
func (s *Service) IsOfferExpired(offer store.Offer, now time.Time) bool {
	return expiration.IsExpired(offer.ExpirationDate, offer.ExpirationTime, s.loc, now)
}

func (s *Service) Countdown(ctx context.Context, id string) (CountdownView, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return CountdownView{}, storeError(err, "offer")
	}
	view := CountdownView{OfferID: offer.ID, Text: expiration.NoExpirationText}
	expiry, ok := expiration.Combine(offer.ExpirationDate, offer.ExpirationTime, s.loc)
	if !ok {
		return view, nil
	}
	countdown := expiration.FormatCountdown(expiry, s.now())
	view.ExpiresAt = &expiry
	view.Text = countdown.Text
	view.Expired = countdown.Expired
	return view, nil
}

// History lists the archived versions of id's negotiation chain, newest
// first. A chain that was never archived has no history.
func (s *Service) History(ctx context.Context, id string, limit int) ([]archive.Entry, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return nil, storeError(err, "offer")
	}
	if s.archive == nil {
		return []archive.Entry{}, nil
	}
	root, err := s.chainRoot(ctx, offer)
	if err != nil {
		return nil, err
	}
	entries, err := s.archive.History(offer.PropertyID, root, limit)
	if err != nil {
		logger.FromContext(ctx).Warn("read offer history", "offer_id", id, "error", err)
		return []archive.Entry{}, nil
	}
	return entries, nil
}

// SnapshotAt returns offer id as archived in commit hash.
func (s *Service) SnapshotAt(ctx context.Context, id, hash string) (archive.Snapshot, error) {
	offer, err := s.store.GetOffer(ctx, id)
	if err != nil {
		return archive.Snapshot{}, storeError(err, "offer")
	}
	if s.archive == nil {
		return archive.Snapshot{}, notFoundError("snapshot")
	}
	snap, err := s.archive.SnapshotAt(offer.PropertyID, hash, offer.ID)
	if err != nil {
		e := notFoundError("snapshot")
		e.Cause = err
		return archive.Snapshot{}, e
	}
	return snap, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// chainRoot follows counterToOfferId back to the first offer of the chain.
func (s *Service) chainRoot(ctx context.Context, offer store.Offer) (string, error) {
	seen := map[string]bool{offer.ID: true}
	root := offer.ID
	for cur := offer; cur.CounterToOfferID != nil; {
		prev, ok, err := s.chainLink(ctx, *cur.CounterToOfferID, seen)
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		root = prev.ID
		cur = prev
	}
	return root, nil
}

// afterCommit archives and indexes committed offers. Failures are logged and
// never reach the caller.
func (s *Service) afterCommit(ctx context.Context, author, message string, offers ...store.Offer) {
	log := logger.FromContext(ctx)
	for _, offer := range offers {
		if s.archive != nil {
			root, err := s.chainRoot(ctx, offer)
			if err != nil {
				log.Warn("archive offer: resolve chain", "offer_id", offer.ID, "error", err)
			} else if _, err := s.archive.Record(root, snapshotOf(offer), author, message, offer.UpdatedAt); err != nil {
				log.Warn("archive offer", "offer_id", offer.ID, "error", err)
			}
		}
		if s.search != nil {
			s.search.IndexOffer(search.RecordFromOffer(offer))
		}
	}
}

func snapshotOf(offer store.Offer) archive.Snapshot {
	snap := archive.Snapshot{
		OfferID:        offer.ID,
		PropertyID:     offer.PropertyID,
		BuyerID:        offer.BuyerID,
		CreatedBy:      offer.CreatedBy,
		OfferType:      offer.OfferType,
		Status:         offer.Status,
		ExpirationDate: offer.ExpirationDate,
		ExpirationTime: offer.ExpirationTime,
		Version:        offer.Version,
		Document:       offer.Document,
	}
	if offer.CounterToOfferID != nil {
		snap.CounterToOfferID = *offer.CounterToOfferID
	}
	if offer.CounteredByOfferID != nil {
		snap.CounteredByOfferID = *offer.CounteredByOfferID
	}
	return snap
}

func (s *Service) newTransaction(offer store.Offer, property store.Property, acceptedAt, now time.Time) store.Transaction {
	return store.Transaction{
		ID:              util.NewID("txn"),
		OfferID:         offer.ID,
		PropertyID:      offer.PropertyID,
		BuyerID:         offer.BuyerID,
		SellerID:        property.SellerID,
		Parties:         []string{offer.BuyerID, property.SellerID},
		AcceptedAt:      acceptedAt,
		Status:          store.TransactionStatusActive,
		Steps:           steps.Build(offer.Document, acceptedAt.In(s.loc)),
		AssignedVendors: []store.VendorAssignment{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
