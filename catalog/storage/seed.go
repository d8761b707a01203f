package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/catalogbot/catalog"
	"github.com/m3rciful/catalogbot/core/logger"
)

// CreateCategory inserts c and sets its ID.
func (s *Store) CreateCategory(ctx context.Context, c *catalog.Category) error {
	return createCategory(ctx, s.db, c)
}

// CreateItem inserts it and sets its ID. Media on the item is not written.
func (s *Store) CreateItem(ctx context.Context, it *catalog.Item) error {
	return createItem(ctx, s.db, it)
}

// AddMedia inserts m and sets its ID.
func (s *Store) AddMedia(ctx context.Context, m *catalog.MediaRecord) error {
	return addMedia(ctx, s.db, m)
}

type execer interface {
	sqlx.QueryerContext
	Rebind(string) string
}

func createCategory(ctx context.Context, db execer, c *catalog.Category) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("category %q: unknown kind %q", c.Name, c.Kind)
	}
	var parent any
	if c.ParentID != nil && *c.ParentID > 0 {
		parent = *c.ParentID
	}
	q := db.Rebind(`INSERT INTO categories (name, parent_id, kind) VALUES (?, ?, ?) RETURNING id`)
	if err := db.QueryRowxContext(ctx, q, c.Name, parent, string(c.Kind)).Scan(&c.ID); err != nil {
		return catalog.WrapRepo("create category", err)
	}
	return nil
}

func createItem(ctx context.Context, db execer, it *catalog.Item) error {
	if !it.Kind.Valid() {
		return fmt.Errorf("item %q: unknown kind %q", it.Name, it.Kind)
	}
	var price any
	if it.PriceCents != nil {
		price = *it.PriceCents
	}
	q := db.Rebind(`INSERT INTO items (kind, category_id, name, description, price_cents) VALUES (?, ?, ?, ?, ?) RETURNING id`)
	if err := db.QueryRowxContext(ctx, q, string(it.Kind), it.CategoryID, it.Name, it.Description, price).Scan(&it.ID); err != nil {
		return catalog.WrapRepo("create item", err)
	}
	return nil
}

func addMedia(ctx context.Context, db execer, m *catalog.MediaRecord) error {
	if m.Kind == "" {
		m.Kind = catalog.MediaPhoto
	}
	if err := m.Validate(); err != nil {
		return err
	}
	q := db.Rebind(`INSERT INTO media (owner_type, owner_id, remote_handle, local_path, kind, position) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := db.QueryRowxContext(ctx, q, string(m.OwnerType), m.OwnerID, m.RemoteHandle, m.LocalPath, string(m.Kind), m.Position).Scan(&m.ID); err != nil {
		return catalog.WrapRepo("add media", err)
	}
	return nil
}

// SeedFile is the YAML layout of an initial catalog.
type SeedFile struct {
	Categories []SeedCategory `yaml:"categories"`
}

// SeedCategory is a category node with nested children or items.
type SeedCategory struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Children []SeedCategory `yaml:"children"`
	Items    []SeedItem     `yaml:"items"`
}

// SeedItem is an item with optional price and media.
type SeedItem struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	PriceCents  *int64      `yaml:"price_cents"`
	Media       []SeedMedia `yaml:"media"`
}

// SeedMedia references a local file or an already known remote handle.
type SeedMedia struct {
	Path   string `yaml:"path"`
	Handle string `yaml:"handle"`
	Kind   string `yaml:"kind"`
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &f, nil
}

// Seed writes the seed catalog in one transaction. It does nothing when the
// catalog already has categories.
func (s *Store) Seed(ctx context.Context, f *SeedFile) error {
	if f == nil || len(f.Categories) == 0 {
		return nil
	}
	var existing int
	if err := s.db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM categories`); err != nil {
		return catalog.WrapRepo("seed count", err)
	}
	if existing > 0 {
		logger.Info(ctx, "db.seed", "seed.catalog",
			slog.String("status", "skip"),
			slog.Int("count", existing),
		)
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return catalog.WrapRepo("seed begin", err)
	}
	var counts seedCounts
	for _, node := range f.Categories {
		if err := seedCategory(ctx, tx, node, catalog.Kind(strings.TrimSpace(node.Kind)), nil, &counts); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return catalog.WrapRepo("seed commit", err)
	}
	logger.Info(ctx, "db.seed", "seed.catalog",
		slog.String("status", "ok"),
		slog.Int("categories", counts.categories),
		slog.Int("items", counts.items),
		slog.Int("media", counts.media),
	)
	return nil
}

type seedCounts struct {
	categories, items, media int
}

func seedCategory(ctx context.Context, tx *sqlx.Tx, node SeedCategory, kind catalog.Kind, parent *int64, counts *seedCounts) error {
	if k := strings.TrimSpace(node.Kind); k != "" && catalog.Kind(k) != kind {
		return fmt.Errorf("seed category %q: kind %q differs from parent kind %q", node.Name, k, kind)
	}
	c := catalog.Category{Name: node.Name, Kind: kind, ParentID: parent}
	if err := createCategory(ctx, tx, &c); err != nil {
		return err
	}
	counts.categories++

	for _, child := range node.Children {
		if err := seedCategory(ctx, tx, child, kind, &c.ID, counts); err != nil {
			return err
		}
	}
	for _, si := range node.Items {
		it := catalog.Item{
			Kind:        kind,
			CategoryID:  c.ID,
			Name:        si.Name,
			Description: si.Description,
			PriceCents:  si.PriceCents,
		}
		if err := createItem(ctx, tx, &it); err != nil {
			return err
		}
		counts.items++
		for mpos, sm := range si.Media {
			m := catalog.MediaRecord{
				OwnerType:    kind,
				OwnerID:      it.ID,
				RemoteHandle: sm.Handle,
				LocalPath:    sm.Path,
				Kind:         catalog.MediaKind(sm.Kind),
				Position:     mpos,
			}
			if err := addMedia(ctx, tx, &m); err != nil {
				return fmt.Errorf("seed item %q: %w", si.Name, err)
			}
			counts.media++
		}
	}
	return nil
}
