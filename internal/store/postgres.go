package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT DEFAULT '',
	address TEXT DEFAULT '',
	city TEXT DEFAULT '',
	state TEXT DEFAULT '',
	postal_code TEXT DEFAULT '',
	country TEXT DEFAULT '',
	phone TEXT DEFAULT '',
	website TEXT DEFAULT '',
	email TEXT DEFAULT '',
	email_guessed BOOLEAN NOT NULL DEFAULT FALSE,
	email_confidence INT NOT NULL DEFAULT 0,
	rating DOUBLE PRECISION DEFAULT 0,
	review_count INT DEFAULT 0,
	maps_url TEXT DEFAULT '',
	place_id TEXT UNIQUE,
	is_claimed BOOLEAN NOT NULL DEFAULT FALSE,
	is_open BOOLEAN NOT NULL DEFAULT TRUE,
	price_level TEXT DEFAULT '',
	ai_lead_score INT NOT NULL DEFAULT 0,
	ai_insights JSONB NOT NULL DEFAULT '[]',
	ai_concerns JSONB NOT NULL DEFAULT '[]',
	recommended_services JSONB NOT NULL DEFAULT '[]',
	ai_outreach_message TEXT,
	status TEXT NOT NULL DEFAULT 'new',
	source TEXT,
	scraped_at TIMESTAMPTZ,
	notes TEXT,
	crm_synced_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(ai_lead_score);

CREATE TABLE IF NOT EXISTS interactions (
	id BIGSERIAL PRIMARY KEY,
	lead_id BIGINT NOT NULL REFERENCES leads(id),
	old_status TEXT,
	new_status TEXT NOT NULL,
	note TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id);
`

// pgxPool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore persists leads in Postgres via a pgx connection pool.
type PostgresStore struct {
	pool pgxPool
}

// OpenPostgres connects to the database at databaseURL.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: open postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool. Used by tests.
func NewPostgresStore(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return eris.Wrap(err, "store: migrate postgres schema")
	}
	return nil
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	insights, concerns, services := marshalLists(lead)

	err := s.pool.QueryRow(ctx, `
		INSERT INTO leads (
			name, category, address, city, state, postal_code, country,
			phone, website, email, email_guessed, email_confidence,
			rating, review_count, maps_url, place_id, is_claimed, is_open, price_level,
			ai_lead_score, ai_insights, ai_concerns, recommended_services, ai_outreach_message,
			status, source, scraped_at, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		ON CONFLICT (place_id) DO NOTHING
		RETURNING id`,
		lead.Name, lead.Category, lead.Address, lead.City, lead.State, lead.PostalCode, lead.Country,
		lead.Phone, lead.Website, lead.Email, lead.EmailGuessed, lead.EmailConfidence,
		lead.Rating, lead.ReviewCount, lead.MapsURL, lead.PlaceID, lead.IsClaimed, lead.IsOpen, lead.PriceLevel,
		lead.Score, insights, concerns, services, lead.OutreachMessage,
		lead.Status, lead.Source, lead.ScrapedAt, lead.Notes,
	).Scan(&lead.ID)
	if err == pgx.ErrNoRows {
		return ErrDuplicateLead
	}
	if err != nil {
		return eris.Wrap(err, "store: insert lead")
	}
	return nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = $1", id)
	lead, err := scanPgLead(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get lead")
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, f Filter) ([]model.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads WHERE 1=1"
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		query += " AND status = " + arg(f.Status)
	}
	if f.City != "" {
		query += " AND city = " + arg(f.City)
	}
	if f.Category != "" {
		query += " AND category = " + arg(f.Category)
	}
	if f.MinScore > 0 {
		query += " AND ai_lead_score >= " + arg(f.MinScore)
	}
	query += " ORDER BY ai_lead_score DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
		if f.Offset > 0 {
			query += " OFFSET " + arg(f.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list leads")
	}
	defer rows.Close()
	return collectPgLeads(rows)
}

func (s *PostgresStore) SearchLeads(ctx context.Context, query string) ([]model.Lead, error) {
	like := "%" + query + "%"
	rows, err := s.pool.Query(ctx,
		"SELECT "+leadColumns+` FROM leads
		WHERE name ILIKE $1 OR category ILIKE $1 OR city ILIKE $1
		ORDER BY ai_lead_score DESC`, like)
	if err != nil {
		return nil, eris.Wrap(err, "store: search leads")
	}
	defer rows.Close()
	return collectPgLeads(rows)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id int64, status model.Status, note string) error {
	if !model.ValidStatus(status) {
		return eris.Errorf("store: invalid status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin status update")
	}
	defer tx.Rollback(ctx)

	var oldStatus string
	err = tx.QueryRow(ctx, "SELECT status FROM leads WHERE id = $1", id).Scan(&oldStatus)
	if err == pgx.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "store: read current status")
	}

	now := time.Now().UTC()
	entry := statusNote(model.Status(oldStatus), status, note, now)
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET status = $1, notes = CASE WHEN notes IS NULL OR notes = '' THEN $2 ELSE notes || E'\n' || $2 END
		WHERE id = $3`, status, entry, id); err != nil {
		return eris.Wrap(err, "store: update status")
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO interactions (lead_id, old_status, new_status, note, created_at) VALUES ($1,$2,$3,$4,$5)",
		id, oldStatus, status, note, now); err != nil {
		return eris.Wrap(err, "store: record interaction")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit status update")
	}
	return nil
}

func (s *PostgresStore) MarkCRMSynced(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "UPDATE leads SET crm_synced_at = $1 WHERE id = $2", time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "store: mark crm synced")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByStatus:      map[string]int{},
		TopCities:     map[string]int{},
		TopCategories: map[string]int{},
	}

	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(AVG(ai_lead_score), 0) FROM leads").
		Scan(&stats.TotalLeads, &stats.AvgScore)
	if err != nil {
		return nil, eris.Wrap(err, "store: count leads")
	}

	if err := s.groupCount(ctx, "status", 0, stats.ByStatus); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "city", 10, stats.TopCities); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "category", 10, stats.TopCategories); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *PostgresStore) groupCount(ctx context.Context, column string, limit int, out map[string]int) error {
	query := "SELECT " + column + ", COUNT(*) FROM leads WHERE " + column + " != '' GROUP BY " + column + " ORDER BY COUNT(*) DESC"
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return eris.Wrap(err, "store: group by "+column)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return eris.Wrap(err, "store: scan group row")
		}
		out[key] = n
	}
	return rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var lead model.Lead
	var insights, concerns, services []byte
	var outreach, notes, source *string
	var synced *time.Time

	err := row.Scan(
		&lead.ID, &lead.Name, &lead.Category, &lead.Address, &lead.City, &lead.State,
		&lead.PostalCode, &lead.Country,
		&lead.Phone, &lead.Website, &lead.Email, &lead.EmailGuessed, &lead.EmailConfidence,
		&lead.Rating, &lead.ReviewCount, &lead.MapsURL, &lead.PlaceID,
		&lead.IsClaimed, &lead.IsOpen, &lead.PriceLevel,
		&lead.Score, &insights, &concerns, &services, &outreach,
		&lead.Status, &source, &lead.ScrapedAt, &notes, &synced,
	)
	if err != nil {
		return nil, err
	}

	if outreach != nil {
		lead.OutreachMessage = *outreach
	}
	if notes != nil {
		lead.Notes = *notes
	}
	if source != nil {
		lead.Source = *source
	}
	lead.CRMSyncedAt = synced
	json.Unmarshal(insights, &lead.Insights)
	json.Unmarshal(concerns, &lead.Concerns)
	json.Unmarshal(services, &lead.RecommendedServices)
	return &lead, nil
}

func collectPgLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		lead, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan lead")
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate leads")
	}
	return leads, nil
}
