package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	category TEXT,
	address TEXT,
	city TEXT,
	state TEXT,
	postal_code TEXT,
	country TEXT,
	phone TEXT,
	website TEXT,
	email TEXT,
	email_guessed INTEGER NOT NULL DEFAULT 0,
	email_confidence INTEGER NOT NULL DEFAULT 0,
	rating REAL,
	review_count INTEGER,
	maps_url TEXT,
	place_id TEXT UNIQUE,
	is_claimed INTEGER NOT NULL DEFAULT 0,
	is_open INTEGER NOT NULL DEFAULT 1,
	price_level TEXT,
	ai_lead_score INTEGER NOT NULL DEFAULT 0,
	ai_insights TEXT NOT NULL DEFAULT '[]',
	ai_concerns TEXT NOT NULL DEFAULT '[]',
	recommended_services TEXT NOT NULL DEFAULT '[]',
	ai_outreach_message TEXT,
	status TEXT NOT NULL DEFAULT 'new',
	source TEXT,
	scraped_at TIMESTAMP,
	notes TEXT,
	crm_synced_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(ai_lead_score);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id INTEGER NOT NULL REFERENCES leads(id),
	old_status TEXT,
	new_status TEXT NOT NULL,
	note TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_lead ON interactions(lead_id);
`

const leadColumns = `id, name, category, address, city, state, postal_code, country,
phone, website, email, email_guessed, email_confidence,
rating, review_count, maps_url, place_id, is_claimed, is_open, price_level,
ai_lead_score, ai_insights, ai_concerns, recommended_services, ai_outreach_message,
status, source, scraped_at, notes, crm_synced_at`

// SQLiteStore persists leads in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	// Single writer; WAL keeps readers unblocked during pipeline writes.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrap(err, "store: set pragma")
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: migrate sqlite schema")
	}
	return nil
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	insights, concerns, services := marshalLists(lead)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (
			name, category, address, city, state, postal_code, country,
			phone, website, email, email_guessed, email_confidence,
			rating, review_count, maps_url, place_id, is_claimed, is_open, price_level,
			ai_lead_score, ai_insights, ai_concerns, recommended_services, ai_outreach_message,
			status, source, scraped_at, notes
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(place_id) DO NOTHING`,
		lead.Name, lead.Category, lead.Address, lead.City, lead.State, lead.PostalCode, lead.Country,
		lead.Phone, lead.Website, lead.Email, lead.EmailGuessed, lead.EmailConfidence,
		lead.Rating, lead.ReviewCount, lead.MapsURL, lead.PlaceID, lead.IsClaimed, lead.IsOpen, lead.PriceLevel,
		lead.Score, insights, concerns, services, lead.OutreachMessage,
		lead.Status, lead.Source, lead.ScrapedAt, lead.Notes,
	)
	if err != nil {
		return eris.Wrap(err, "store: insert lead")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return ErrDuplicateLead
	}

	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "store: last insert id")
	}
	lead.ID = id
	return nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id int64) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: get lead")
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, f Filter) ([]model.Lead, error) {
	query := "SELECT " + leadColumns + " FROM leads WHERE 1=1"
	var args []any

	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.City != "" {
		query += " AND city = ?"
		args = append(args, f.City)
	}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.MinScore > 0 {
		query += " AND ai_lead_score >= ?"
		args = append(args, f.MinScore)
	}
	query += " ORDER BY ai_lead_score DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) SearchLeads(ctx context.Context, query string) ([]model.Lead, error) {
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+leadColumns+` FROM leads
		WHERE name LIKE ? OR category LIKE ? OR city LIKE ?
		ORDER BY ai_lead_score DESC`, like, like, like)
	if err != nil {
		return nil, eris.Wrap(err, "store: search leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id int64, status model.Status, note string) error {
	if !model.ValidStatus(status) {
		return eris.Errorf("store: invalid status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin status update")
	}
	defer tx.Rollback()

	var oldStatus string
	err = tx.QueryRowContext(ctx, "SELECT status FROM leads WHERE id = ?", id).Scan(&oldStatus)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return eris.Wrap(err, "store: read current status")
	}

	now := time.Now().UTC()
	entry := statusNote(model.Status(oldStatus), status, note, now)
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, notes = CASE WHEN notes IS NULL OR notes = '' THEN ? ELSE notes || char(10) || ? END
		WHERE id = ?`, status, entry, entry, id); err != nil {
		return eris.Wrap(err, "store: update status")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO interactions (lead_id, old_status, new_status, note, created_at) VALUES (?,?,?,?,?)",
		id, oldStatus, status, note, now); err != nil {
		return eris.Wrap(err, "store: record interaction")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit status update")
	}
	return nil
}

func (s *SQLiteStore) MarkCRMSynced(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE leads SET crm_synced_at = ? WHERE id = ?", time.Now().UTC(), id)
	if err != nil {
		return eris.Wrap(err, "store: mark crm synced")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{
		ByStatus:      map[string]int{},
		TopCities:     map[string]int{},
		TopCategories: map[string]int{},
	}

	err := s.db.QueryRowContext(ctx,
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

func (s *SQLiteStore) groupCount(ctx context.Context, column string, limit int, out map[string]int) error {
	query := "SELECT " + column + ", COUNT(*) FROM leads WHERE " + column + " != '' GROUP BY " + column + " ORDER BY COUNT(*) DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- row helpers shared with the Postgres store ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (*model.Lead, error) {
	var lead model.Lead
	var insights, concerns, services string
	var outreach, notes, source sql.NullString
	var synced sql.NullTime

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

	lead.OutreachMessage = outreach.String
	lead.Notes = notes.String
	lead.Source = source.String
	if synced.Valid {
		t := synced.Time
		lead.CRMSyncedAt = &t
	}
	json.Unmarshal([]byte(insights), &lead.Insights)
	json.Unmarshal([]byte(concerns), &lead.Concerns)
	json.Unmarshal([]byte(services), &lead.RecommendedServices)
	return &lead, nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
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

func marshalLists(lead *model.Lead) (insights, concerns, services string) {
	return marshalList(lead.Insights), marshalList(lead.Concerns), marshalList(lead.RecommendedServices)
}

func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func statusNote(from, to model.Status, note string, at time.Time) string {
	entry := at.Format("2006-01-02 15:04") + " " + string(from) + " -> " + string(to)
	if strings.TrimSpace(note) != "" {
		entry += ": " + note
	}
	return entry
}
