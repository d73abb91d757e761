package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const offerColumns = `id, property_id, buyer_id, created_by, offer_type, status, counter_to_offer_id,
	countered_by_offer_id, document, expiration_date, expiration_time, version, created_at, updated_at`

func (s *SQLStore) InsertOffer(ctx context.Context, offer Offer) error {
	return s.insertOffer(ctx, s.db, offer)
}

func (s *SQLStore) insertOffer(ctx context.Context, q querier, offer Offer) error {
	payload, err := json.Marshal(offer.Document)
	if err != nil {
		return fmt.Errorf("marshal offer document: %w", err)
	}
	version := offer.Version
	if version == 0 {
		version = 1
	}
	_, err = q.ExecContext(ctx, s.q(`
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`),
		offer.ID,
		offer.PropertyID,
		offer.BuyerID,
		offer.CreatedBy,
		offer.OfferType,
		offer.Status,
		nullString(offer.CounterToOfferID),
		nullString(offer.CounteredByOfferID),
		string(payload),
		offer.ExpirationDate,
		offer.ExpirationTime,
		version,
		toMillis(offer.CreatedAt),
		toMillis(offer.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}
	return nil
}

func (s *SQLStore) GetOffer(ctx context.Context, id string) (Offer, error) {
	return s.getOffer(ctx, s.db, id)
}

func (s *SQLStore) getOffer(ctx context.Context, q querier, id string) (Offer, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+offerColumns+` FROM offers WHERE id=$1`), id)
	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	if err != nil {
		return Offer{}, fmt.Errorf("get offer: %w", err)
	}
	return offer, nil
}

func (s *SQLStore) ListOffersByProperty(ctx context.Context, propertyID string) ([]Offer, error) {
	return s.listOffers(ctx, `WHERE property_id=$1`, propertyID)
}

func (s *SQLStore) ListOffersByBuyer(ctx context.Context, buyerID string) ([]Offer, error) {
	return s.listOffers(ctx, `WHERE buyer_id=$1`, buyerID)
}

// ListOffers pages through every offer in creation order.
func (s *SQLStore) ListOffers(ctx context.Context, limit, offset int) ([]Offer, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT `+offerColumns+` FROM offers
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

func (s *SQLStore) listOffers(ctx context.Context, where string, arg string) ([]Offer, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+offerColumns+` FROM offers `+where+` ORDER BY created_at ASC, id ASC`), arg)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()
	return collectOffers(rows)
}

// OfferSearch selects offers for the substring search. Blank filters match
// every offer.
type OfferSearch struct {
	Text       string
	PropertyID string
	Status     string
	Limit      int
	Offset     int
}

// SearchOffers is the substring search used when no search index is
// reachable. It returns one page and the number of offers matching overall.
func (s *SQLStore) SearchOffers(ctx context.Context, search OfferSearch) ([]Offer, int, error) {
	limit := search.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(search.Offset, 0)

	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(search.Text))) + "%"
	args := []any{pattern, pattern, pattern, pattern}
	where := `WHERE (LOWER(document) LIKE $1 ESCAPE '\' OR LOWER(id) LIKE $2 ESCAPE '\'
		OR LOWER(property_id) LIKE $3 ESCAPE '\' OR LOWER(buyer_id) LIKE $4 ESCAPE '\')`
	if search.PropertyID != "" {
		args = append(args, search.PropertyID)
		where += fmt.Sprintf(" AND property_id=$%d", len(args))
	}
	if search.Status != "" {
		args = append(args, search.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM offers `+where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}
	if total == 0 || offset >= total {
		return []Offer{}, total, nil
	}

	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+offerColumns+` FROM offers `+where+
		fmt.Sprintf(` ORDER BY updated_at DESC, id ASC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search offers: %w", err)
	}
	defer rows.Close()
	offers, err := collectOffers(rows)
	if err != nil {
		return nil, 0, err
	}
	return offers, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE metacharacters in user text match literally.
func escapeLike(text string) string {
	return likeEscaper.Replace(text)
}

// TransitionOffer moves a pending offer to status, guarded by its version.
func (s *SQLStore) TransitionOffer(ctx context.Context, id string, expectedVersion int, status string, at time.Time) error {
	return s.transitionOffer(ctx, s.db, id, expectedVersion, status, nil, at)
}

func (s *SQLStore) transitionOffer(ctx context.Context, q querier, id string, expectedVersion int, status string, counteredBy *string, at time.Time) error {
	result, err := q.ExecContext(ctx, s.q(`
		UPDATE offers
		SET status=$1, countered_by_offer_id=COALESCE($2, countered_by_offer_id), version=version+1, updated_at=$3
		WHERE id=$4 AND version=$5 AND status='pending'
	`), status, nullString(counteredBy), toMillis(at), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("transition offer: %w", err)
	}
	return s.expectOneRow(ctx, q, result, `SELECT COUNT(1) FROM offers WHERE id=$1`, id)
}

// CounterOffer inserts counter and marks the original countered in one
// transaction. The original must still be pending at expectedVersion.
func (s *SQLStore) CounterOffer(ctx context.Context, originalID string, expectedVersion int, counter Offer, at time.Time) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertOffer(ctx, tx, counter); err != nil {
			return err
		}
		return s.transitionOffer(ctx, tx, originalID, expectedVersion, OfferStatusCountered, &counter.ID, at)
	})
}

// AcceptPSA accepts a binding offer, puts its property under contract, and
// creates its transaction atomically. It returns the transaction id and
// whether this call created it.
func (s *SQLStore) AcceptPSA(ctx context.Context, offerID string, expectedVersion int, txn Transaction, at time.Time) (string, bool, error) {
	var (
		transactionID string
		created       bool
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.transitionOffer(ctx, tx, offerID, expectedVersion, OfferStatusAccepted, nil, at); err != nil {
			return err
		}
		if err := s.setPropertyStatus(ctx, tx, txn.PropertyID, PropertyStatusUnderContract, at); err != nil {
			return err
		}
		id, ok, err := s.createTransaction(ctx, tx, txn)
		if err != nil {
			return err
		}
		transactionID, created = id, ok
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return transactionID, created, nil
}

// expectOneRow turns a zero-row CAS update into ErrNotFound or
// ErrVersionConflict depending on whether the row exists.
func (s *SQLStore) expectOneRow(ctx context.Context, q querier, result sql.Result, existsQuery, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}
	var count int
	if err := q.QueryRowContext(ctx, s.q(existsQuery), id).Scan(&count); err != nil {
		return fmt.Errorf("check row exists: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func collectOffers(rows *sql.Rows) ([]Offer, error) {
	items := make([]Offer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		items = append(items, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}
	return items, nil
}

func scanOffer(row scanner) (Offer, error) {
	var (
		offer       Offer
		counterTo   sql.NullString
		counteredBy sql.NullString
		payload     string
		createdAt   int64
		updatedAt   int64
	)
	if err := row.Scan(
		&offer.ID,
		&offer.PropertyID,
		&offer.BuyerID,
		&offer.CreatedBy,
		&offer.OfferType,
		&offer.Status,
		&counterTo,
		&counteredBy,
		&payload,
		&offer.ExpirationDate,
		&offer.ExpirationTime,
		&offer.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Offer{}, err
	}
	if err := json.Unmarshal([]byte(payload), &offer.Document); err != nil {
		return Offer{}, fmt.Errorf("decode offer document %s: %w", offer.ID, err)
	}
	offer.CounterToOfferID = stringPtr(counterTo)
	offer.CounteredByOfferID = stringPtr(counteredBy)
	offer.CreatedAt = fromMillis(createdAt)
	offer.UpdatedAt = fromMillis(updatedAt)
	return offer, nil
}
