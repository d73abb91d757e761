package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *SQLStore) GetVendor(ctx context.Context, id string) (Vendor, error) {
	var vendor Vendor
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, company, email, phone FROM vendors WHERE id=$1`), id).
		Scan(&vendor.ID, &vendor.Name, &vendor.Company, &vendor.Email, &vendor.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return Vendor{}, ErrNotFound
	}
	if err != nil {
		return Vendor{}, fmt.Errorf("get vendor: %w", err)
	}
	return vendor, nil
}

func (s *SQLStore) UpsertVendor(ctx context.Context, vendor Vendor) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO vendors (id, name, company, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name=excluded.name,
			company=excluded.company,
			email=excluded.email,
			phone=excluded.phone
	`), vendor.ID, vendor.Name, vendor.Company, vendor.Email, vendor.Phone)
	if err != nil {
		return fmt.Errorf("upsert vendor: %w", err)
	}
	return nil
}
