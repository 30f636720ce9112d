// Package store persists leads behind a driver-agnostic interface with
// SQLite and Postgres implementations.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// ErrDuplicateLead reports a save that matched an existing place ID.
// Callers classify this separately from real failures.
var ErrDuplicateLead = eris.New("store: duplicate lead")

// ErrNotFound reports a lookup for a lead that does not exist.
var ErrNotFound = eris.New("store: lead not found")

// Filter narrows a lead listing. Zero values mean "no constraint".
type Filter struct {
	Status   model.Status
	City     string
	Category string
	MinScore int
	Limit    int
	Offset   int
}

// Store is the persistence contract for leads.
type Store interface {
	// Migrate creates or upgrades the schema. Idempotent.
	Migrate(ctx context.Context) error

	// SaveLead inserts a lead and sets its ID. Returns ErrDuplicateLead
	// when a lead with the same place ID already exists.
	SaveLead(ctx context.Context, lead *model.Lead) error

	// GetLead fetches one lead by ID. Returns ErrNotFound when absent.
	GetLead(ctx context.Context, id int64) (*model.Lead, error)

	// ListLeads returns leads matching the filter, newest first.
	ListLeads(ctx context.Context, f Filter) ([]model.Lead, error)

	// SearchLeads matches name, category, or city against the query.
	SearchLeads(ctx context.Context, query string) ([]model.Lead, error)

	// UpdateStatus transitions a lead and records the change with an
	// optional note. Returns ErrNotFound when the lead does not exist.
	UpdateStatus(ctx context.Context, id int64, status model.Status, note string) error

	// MarkCRMSynced stamps the lead's CRM sync time.
	MarkCRMSynced(ctx context.Context, id int64) error

	// Stats summarizes the current lead database.
	Stats(ctx context.Context) (*model.Stats, error)

	Close() error
}

// Open creates a Store for the configured driver.
func Open(driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(databaseURL)
	case "postgres":
		return OpenPostgres(context.Background(), databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
