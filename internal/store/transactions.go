package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const transactionColumns = `id, offer_id, property_id, buyer_id, seller_id, accepted_at, status, steps,
	assigned_vendors, version, created_at, updated_at`

// CreateTransaction inserts txn unless its offer already has one. It returns
// the stored transaction id and whether this call created it.
func (s *SQLStore) CreateTransaction(ctx context.Context, txn Transaction) (string, bool, error) {
	return s.createTransaction(ctx, s.db, txn)
}

func (s *SQLStore) createTransaction(ctx context.Context, q querier, txn Transaction) (string, bool, error) {
	steps, err := json.Marshal(nonNilSteps(txn.Steps))
	if err != nil {
		return "", false, fmt.Errorf("marshal steps: %w", err)
	}
	vendors, err := json.Marshal(nonNilVendors(txn.AssignedVendors))
	if err != nil {
		return "", false, fmt.Errorf("marshal vendors: %w", err)
	}
	status := txn.Status
	if status == "" {
		status = TransactionStatusActive
	}

	result, err := q.ExecContext(ctx, s.q(`
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
		ON CONFLICT (offer_id) DO NOTHING
	`),
		txn.ID,
		txn.OfferID,
		txn.PropertyID,
		txn.BuyerID,
		txn.SellerID,
		toMillis(txn.AcceptedAt),
		status,
		string(steps),
		string(vendors),
		toMillis(txn.CreatedAt),
		toMillis(txn.UpdatedAt),
	)
	if err != nil {
		return "", false, fmt.Errorf("insert transaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 1 {
		return txn.ID, true, nil
	}

	var existing string
	if err := q.QueryRowContext(ctx, s.q(`SELECT id FROM transactions WHERE offer_id=$1`), txn.OfferID).Scan(&existing); err != nil {
		return "", false, fmt.Errorf("read existing transaction: %w", err)
	}
	return existing, false, nil
}

func (s *SQLStore) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return s.getTransaction(ctx, `WHERE id=$1`, id)
}

func (s *SQLStore) GetTransactionByOffer(ctx context.Context, offerID string) (Transaction, error) {
	return s.getTransaction(ctx, `WHERE offer_id=$1`, offerID)
}

func (s *SQLStore) getTransaction(ctx context.Context, where, arg string) (Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+transactionColumns+` FROM transactions `+where), arg)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}

// UpdateTransactionSteps replaces the whole step list when the stored
// version still equals expectedVersion.
func (s *SQLStore) UpdateTransactionSteps(ctx context.Context, id string, expectedVersion int, steps []Step, at time.Time) error {
	payload, err := json.Marshal(nonNilSteps(steps))
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	return s.updateTransactionColumn(ctx, "steps", id, expectedVersion, string(payload), at)
}

func (s *SQLStore) UpdateTransactionVendors(ctx context.Context, id string, expectedVersion int, vendors []VendorAssignment, at time.Time) error {
	payload, err := json.Marshal(nonNilVendors(vendors))
	if err != nil {
		return fmt.Errorf("marshal vendors: %w", err)
	}
	return s.updateTransactionColumn(ctx, "assigned_vendors", id, expectedVersion, string(payload), at)
}

func (s *SQLStore) updateTransactionColumn(ctx context.Context, column, id string, expectedVersion int, payload string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE transactions SET `+column+`=$1, version=version+1, updated_at=$2
		WHERE id=$3 AND version=$4
	`), payload, toMillis(at), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", column, err)
	}
	return s.expectOneRow(ctx, s.db, result, `SELECT COUNT(1) FROM transactions WHERE id=$1`, id)
}

func scanTransaction(row scanner) (Transaction, error) {
	var (
		txn        Transaction
		steps      string
		vendors    string
		acceptedAt int64
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&txn.ID,
		&txn.OfferID,
		&txn.PropertyID,
		&txn.BuyerID,
		&txn.SellerID,
		&acceptedAt,
		&txn.Status,
		&steps,
		&vendors,
		&txn.Version,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Transaction{}, err
	}
	if err := json.Unmarshal([]byte(steps), &txn.Steps); err != nil {
		return Transaction{}, fmt.Errorf("decode steps for %s: %w", txn.ID, err)
	}
	if err := json.Unmarshal([]byte(vendors), &txn.AssignedVendors); err != nil {
		return Transaction{}, fmt.Errorf("decode vendors for %s: %w", txn.ID, err)
	}
	for i := range txn.Steps {
		txn.Steps[i].DueAt = utcPtr(txn.Steps[i].DueAt)
		txn.Steps[i].CompletedAt = utcPtr(txn.Steps[i].CompletedAt)
	}
	txn.Parties = []string{txn.BuyerID, txn.SellerID}
	txn.AcceptedAt = fromMillis(acceptedAt)
	txn.CreatedAt = fromMillis(createdAt)
	txn.UpdatedAt = fromMillis(updatedAt)
	return txn, nil
}

func utcPtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	out := value.UTC()
	return &out
}

func nonNilSteps(steps []Step) []Step {
	if steps == nil {
		return []Step{}
	}
	return steps
}

func nonNilVendors(vendors []VendorAssignment) []VendorAssignment {
	if vendors == nil {
		return []VendorAssignment{}
	}
	return vendors
}
