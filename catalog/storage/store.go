// Package storage implements the catalog repositories on sqlx. Queries are
// written with ? placeholders and rebound for the connected driver.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/catalogbot/catalog"
)

// Store serves categories, items, media and inquiries from one database.
type Store struct {
	db *sqlx.DB
}

// New wraps an open database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type categoryRow struct {
	ID       int64         `db:"id"`
	Name     string        `db:"name"`
	ParentID sql.NullInt64 `db:"parent_id"`
	Kind     string        `db:"kind"`
}

func (r categoryRow) model() catalog.Category {
	c := catalog.Category{ID: r.ID, Name: r.Name, Kind: catalog.Kind(r.Kind)}
	if r.ParentID.Valid {
		p := r.ParentID.Int64
		c.ParentID = &p
	}
	return c
}

type itemRow struct {
	ID          int64         `db:"id"`
	Kind        string        `db:"kind"`
	CategoryID  int64         `db:"category_id"`
	Name        string        `db:"name"`
	Description string        `db:"description"`
	PriceCents  sql.NullInt64 `db:"price_cents"`
}

func (r itemRow) model() catalog.Item {
	it := catalog.Item{
		ID:          r.ID,
		Kind:        catalog.Kind(r.Kind),
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
	}
	if r.PriceCents.Valid {
		p := r.PriceCents.Int64
		it.PriceCents = &p
	}
	return it
}

const categoryColumns = `id, name, parent_id, kind`

const itemColumns = `id, kind, category_id, name, description, price_cents`

const mediaColumns = `id, owner_type, owner_id, remote_handle, local_path, kind, position`

// Children lists the direct children of parentID. For the root (0) only
// top-level categories of kind are returned. Below the root children are
// listed regardless of kind so callers can detect misfiled nodes.
func (s *Store) Children(ctx context.Context, kind catalog.Kind, parentID int64) ([]catalog.Category, error) {
	var (
		rows []categoryRow
		err  error
	)
	if parentID == 0 {
		q := s.db.Rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE kind = ? AND parent_id IS NULL ORDER BY position, id`)
		err = s.db.SelectContext(ctx, &rows, q, string(kind))
	} else {
		q := s.db.Rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE parent_id = ? ORDER BY position, id`)
		err = s.db.SelectContext(ctx, &rows, q, parentID)
	}
	if err != nil {
		return nil, catalog.WrapRepo("children", err)
	}
	out := make([]catalog.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// Category loads one category by id.
func (s *Store) Category(ctx context.Context, id int64) (catalog.Category, error) {
	var row categoryRow
	q := s.db.Rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Category{}, fmt.Errorf("category %d: %w", id, catalog.ErrNotFound)
		}
		return catalog.Category{}, catalog.WrapRepo("category", err)
	}
	return row.model(), nil
}

// ItemsByCategory lists items of kind attached to categoryID.
func (s *Store) ItemsByCategory(ctx context.Context, kind catalog.Kind, categoryID int64) ([]catalog.Item, error) {
	var rows []itemRow
	q := s.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE kind = ? AND category_id = ? ORDER BY position, id`)
	if err := s.db.SelectContext(ctx, &rows, q, string(kind), categoryID); err != nil {
		return nil, catalog.WrapRepo("items by category", err)
	}
	out := make([]catalog.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

// Item loads one item with its media, ordered by position.
func (s *Store) Item(ctx context.Context, kind catalog.Kind, id int64) (catalog.Item, error) {
	var row itemRow
	q := s.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE kind = ? AND id = ?`)
	if err := s.db.GetContext(ctx, &row, q, string(kind), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Item{}, fmt.Errorf("%s %d: %w", kind, id, catalog.ErrNotFound)
		}
		return catalog.Item{}, catalog.WrapRepo("item", err)
	}
	it := row.model()
	media, err := s.Media(ctx, kind, id)
	if err != nil {
		return catalog.Item{}, err
	}
	it.Media = media
	return it, nil
}

// Media lists the media attached to an item.
func (s *Store) Media(ctx context.Context, ownerType catalog.Kind, ownerID int64) ([]catalog.MediaRecord, error) {
	var recs []catalog.MediaRecord
	q := s.db.Rebind(`SELECT ` + mediaColumns + ` FROM media WHERE owner_type = ? AND owner_id = ? ORDER BY position, id`)
	if err := s.db.SelectContext(ctx, &recs, q, string(ownerType), ownerID); err != nil {
		return nil, catalog.WrapRepo("media", err)
	}
	if recs == nil {
		recs = []catalog.MediaRecord{}
	}
	return recs, nil
}

// SetRemoteHandle stores the handle assigned by the delivery channel.
func (s *Store) SetRemoteHandle(ctx context.Context, mediaID int64, handle string) error {
	q := s.db.Rebind(`UPDATE media SET remote_handle = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, handle, mediaID)
	if err != nil {
		return catalog.WrapRepo("set remote handle", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("media %d: %w", mediaID, catalog.ErrNotFound)
	}
	return nil
}

// CreateInquiry inserts inq and sets its ID. A zero CreatedAt is set to now.
func (s *Store) CreateInquiry(ctx context.Context, inq *catalog.Inquiry) error {
	if inq == nil {
		return catalog.WrapRepo("create inquiry", errors.New("nil inquiry"))
	}
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = time.Now().UTC()
	}
	if inq.Status == "" {
		inq.Status = catalog.InquiryNew
	}
	var productID, serviceID sql.NullInt64
	switch inq.Subject.Kind {
	case catalog.SubjectProduct:
		productID = sql.NullInt64{Int64: inq.Subject.ItemID, Valid: inq.Subject.ItemID > 0}
	case catalog.SubjectService:
		serviceID = sql.NullInt64{Int64: inq.Subject.ItemID, Valid: inq.Subject.ItemID > 0}
	}

	q := s.db.Rebind(`INSERT INTO inquiries (user_id, name, phone, description, product_id, service_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	var id int64
	if err := s.db.QueryRowxContext(ctx, q,
		inq.UserID, inq.Name, inq.Phone, inq.Description,
		productID, serviceID, string(inq.Status), inq.CreatedAt,
	).Scan(&id); err != nil {
		return catalog.WrapRepo("create inquiry", err)
	}
	inq.ID = id
	return nil
}

type inquiryRow struct {
	ID          int64         `db:"id"`
	UserID      int64         `db:"user_id"`
	Name        string        `db:"name"`
	Phone       string        `db:"phone"`
	Description string        `db:"description"`
	ProductID   sql.NullInt64 `db:"product_id"`
	ServiceID   sql.NullInt64 `db:"service_id"`
	Status      string        `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
}

// Inquiry loads a stored inquiry by id.
func (s *Store) Inquiry(ctx context.Context, id int64) (catalog.Inquiry, error) {
	var row inquiryRow
	q := s.db.Rebind(`SELECT id, user_id, name, phone, description, product_id, service_id, status, created_at
		FROM inquiries WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Inquiry{}, fmt.Errorf("inquiry %d: %w", id, catalog.ErrNotFound)
		}
		return catalog.Inquiry{}, catalog.WrapRepo("inquiry", err)
	}
	inq := catalog.Inquiry{
		ID:          row.ID,
		UserID:      row.UserID,
		Name:        row.Name,
		Phone:       row.Phone,
		Description: row.Description,
		Subject:     catalog.General(),
		Status:      catalog.InquiryStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}
	switch {
	case row.ProductID.Valid:
		inq.Subject = catalog.ProductSubject(row.ProductID.Int64)
	case row.ServiceID.Valid:
		inq.Subject = catalog.ServiceSubject(row.ServiceID.Int64)
	}
	return inq, nil
}
