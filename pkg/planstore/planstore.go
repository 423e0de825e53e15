// Package planstore persists finished districting plans.
//
// Backends:
//   - file: one JSON file per plan under a directory, for CLI usage
//   - sqlite: a single database file, for local plan history
//   - mongo: shared store for multi-instance server deployments
//
// Open picks a backend from a DSN-style string so the CLI and the server
// configure storage the same way.
package planstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// ErrNotFound is returned when no plan exists under the requested ID.
var ErrNotFound = errors.New("planstore: plan not found")

// Info is the listing view of a stored plan.
type Info struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Districts    int       `json:"districts"`
	Population   int64     `json:"population"`
	MaxDeviation float64   `json:"max_deviation"`
}

func infoOf(p *plan.Plan) Info {
	return Info{
		ID:           p.ID,
		CreatedAt:    p.CreatedAt,
		Districts:    len(p.Districts),
		Population:   p.Summary.TotalPopulation,
		MaxDeviation: p.Summary.MaxDeviation,
	}
}

// Store is the interface plan storage backends implement.
type Store interface {
	// Save stores a plan, replacing any existing plan with the same ID.
	Save(ctx context.Context, p *plan.Plan) error

	// Get retrieves a plan by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*plan.Plan, error)

	// List returns stored plans newest first.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a plan. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error

	// Close releases backend resources.
	Close() error
}

// Open creates a store from a DSN-style string:
//
//	""                 file store under the default directory
//	file:<dir>         file store under dir
//	sqlite:<path>      SQLite database at path
//	mongodb://<...>    MongoDB, database "autoredistrict"
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "file":
		return NewFileStore("")
	case strings.HasPrefix(dsn, "file:"):
		return NewFileStore(strings.TrimPrefix(dsn, "file:"))
	case strings.HasPrefix(dsn, "sqlite:"):
		return NewSQLiteStore(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongoStore(ctx, dsn, "autoredistrict")
	default:
		return nil, fmt.Errorf("unrecognized plan store %q", dsn)
	}
}
