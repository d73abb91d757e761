package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *SQLStore) GetProperty(ctx context.Context, id string) (Property, error) {
	var (
		property  Property
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, seller_id, status, address, price, updated_at FROM properties WHERE id=$1
	`), id).Scan(&property.ID, &property.SellerID, &property.Status, &property.Address, &property.Price, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Property{}, ErrNotFound
	}
	if err != nil {
		return Property{}, fmt.Errorf("get property: %w", err)
	}
	property.UpdatedAt = fromMillis(updatedAt)
	return property, nil
}

// UpsertProperty records the listing fields this service reads. Listings are
// owned elsewhere; this keeps the local copy current.
func (s *SQLStore) UpsertProperty(ctx context.Context, property Property) error {
	status := property.Status
	if status == "" {
		status = PropertyStatusActive
	}
	updatedAt := property.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO properties (id, seller_id, status, address, price, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			seller_id=excluded.seller_id,
			status=excluded.status,
			address=excluded.address,
			price=excluded.price,
			updated_at=excluded.updated_at
	`), property.ID, property.SellerID, status, property.Address, property.Price, toMillis(updatedAt))
	if err != nil {
		return fmt.Errorf("upsert property: %w", err)
	}
	return nil
}

func (s *SQLStore) SetPropertyStatus(ctx context.Context, id, status string, at time.Time) error {
	return s.setPropertyStatus(ctx, s.db, id, status, at)
}

func (s *SQLStore) setPropertyStatus(ctx context.Context, q querier, id, status string, at time.Time) error {
	result, err := q.ExecContext(ctx, s.q(`UPDATE properties SET status=$1, updated_at=$2 WHERE id=$3`), status, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("set property status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
