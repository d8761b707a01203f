package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder fills reference data after migrations. Seeders must be safe to
// run on every start.
type Seeder interface {
	Seed(ctx context.Context, db *sqlx.DB) error
}

// SeederFunc lets a plain function act as a Seeder.
type SeederFunc func(ctx context.Context, db *sqlx.DB) error

func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error { return f(ctx, db) }

// Modules lists the optional hooks run by Run.
type Modules struct {
	Seeders []Seeder
}
