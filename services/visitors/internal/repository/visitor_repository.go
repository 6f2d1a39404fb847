package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accueilpro/accueilpro/pkg/visits"
	"github.com/accueilpro/accueilpro/services/visitors/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VisitorRepository interface {
	Create(ctx context.Context, req *domain.CheckInRequest, createdBy *uuid.UUID) (*visits.Visitor, error)
	// Checkout returns nil, nil when no visitor has that id.
	Checkout(ctx context.Context, id uuid.UUID, at time.Time) (*visits.Visitor, error)
	List(ctx context.Context) ([]visits.Visitor, error)
}

type visitorRepository struct {
	pool *pgxpool.Pool
}

func NewVisitorRepository(pool *pgxpool.Pool) VisitorRepository {
	return &visitorRepository{pool: pool}
}

const visitorCols = `id, first_name, last_name, phone, id_type, id_number, photo,
visit_purpose, person_to_visit, check_in_time, check_out_time, is_checked_out, created_by`

func scanVisitor(row pgx.Row) (*visits.Visitor, error) {
	var v visits.Visitor
	err := row.Scan(
		&v.ID, &v.FirstName, &v.LastName, &v.Phone, &v.IDType, &v.IDNumber, &v.Photo,
		&v.VisitPurpose, &v.PersonToVisit, &v.CheckInTime, &v.CheckOutTime, &v.IsCheckedOut, &v.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *visitorRepository) Create(ctx context.Context, req *domain.CheckInRequest, createdBy *uuid.UUID) (*visits.Visitor, error) {
	const q = `INSERT INTO visitors (
		first_name, last_name, phone, id_type, id_number, photo,
		visit_purpose, person_to_visit, created_by
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	RETURNING ` + visitorCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVisitor(r.pool.QueryRow(ctx, q,
		req.FirstName, req.LastName, req.Phone, req.IDType, req.IDNumber, req.Photo,
		req.VisitPurpose, req.PersonToVisit, createdBy,
	))
	if err != nil {
		return nil, fmt.Errorf("insert visitor: %w", err)
	}
	return v, nil
}

func (r *visitorRepository) Checkout(ctx context.Context, id uuid.UUID, at time.Time) (*visits.Visitor, error) {
	const q = `UPDATE visitors
		SET check_out_time = GREATEST($2::timestamptz, check_in_time),
			is_checked_out = true
		WHERE id = $1
		RETURNING ` + visitorCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVisitor(r.pool.QueryRow(ctx, q, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout visitor %s: %w", id, err)
	}
	return v, nil
}

func (r *visitorRepository) List(ctx context.Context) ([]visits.Visitor, error) {
	const q = `SELECT ` + visitorCols + ` FROM visitors ORDER BY check_in_time DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list visitors: %w", err)
	}
	defer rows.Close()

	list := []visits.Visitor{}
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		list = append(list, *v)
	}
	return list, rows.Err()
}
