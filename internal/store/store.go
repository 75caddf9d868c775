// Package store persists research records, the history listing, the
// request log and the monitoring baselines in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/token-research-api/internal/model"
)

// historyCap bounds the history listing to the most recent entries.
const historyCap = 50

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS researches (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	name TEXT,
	address TEXT,
	chain TEXT,
	logo TEXT,
	description TEXT,
	website TEXT,
	price_data TEXT,
	tokenomics TEXT,
	onchain TEXT,
	combined TEXT,
	red_flags TEXT,
	price_history TEXT,
	risk_score INTEGER,
	risk_class TEXT,
	sentiment TEXT,
	sentiment_score INTEGER,
	social_score INTEGER,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	ticker TEXT NOT NULL,
	name TEXT,
	risk_score INTEGER,
	risk_class TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS request_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL,
	details TEXT,
	ip_address TEXT,
	user_agent TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS monitoring (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	research_id TEXT NOT NULL,
	ticker TEXT NOT NULL,
	coin_id TEXT NOT NULL,
	baseline_price REAL,
	baseline_volume REAL,
	price_threshold_percentage REAL DEFAULT 50,
	volume_threshold_percentage REAL DEFAULT 500,
	is_active BOOLEAN DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	last_check_at TIMESTAMP,
	FOREIGN KEY (research_id) REFERENCES researches(id)
);

CREATE INDEX IF NOT EXISTS idx_researches_ticker ON researches(ticker);
CREATE INDEX IF NOT EXISTS idx_researches_created ON researches(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_monitoring_ticker ON monitoring(ticker);
`

// Store wraps the SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path, creating the parent
// directory and the schema when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer at a time; serializing through a single
	// connection avoids SQLITE_BUSY under concurrent handlers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	logrus.WithField("path", path).Info("connected to SQLite database")
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResearch persists one record and appends its history entry,
// pruning the history to the most recent entries.
func (s *Store) SaveResearch(ctx context.Context, record model.ResearchRecord) error {
	blobs := map[string]interface{}{}
	for name, v := range map[string]interface{}{
		"price_data":    record.PriceData,
		"tokenomics":    record.Tokenomics,
		"onchain":       record.OnChain,
		"combined":      record.Combined,
		"red_flags":     record.RedFlags,
		"price_history": record.PriceHistory,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", name, err)
		}
		blobs[name] = string(raw)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO researches (
			id, ticker, name, address, chain, logo, description, website,
			price_data, tokenomics, onchain, combined, red_flags, price_history,
			risk_score, risk_class, sentiment, sentiment_score, social_score, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Token.Ticker, record.Token.Name, record.Token.Address,
		record.Token.Chain, record.Token.Logo, record.Token.Description, record.Token.Website,
		blobs["price_data"], blobs["tokenomics"], blobs["onchain"], blobs["combined"],
		blobs["red_flags"], blobs["price_history"],
		record.Analysis.Score, record.Analysis.Class, record.Analysis.Sentiment,
		record.Analysis.SentimentScore, record.SocialScore, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting research: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (id, ticker, name, risk_score, risk_class, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.Token.Ticker, record.Token.Name,
		record.Analysis.Score, record.Analysis.Class, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY created_at DESC, id DESC LIMIT ?
		)`, historyCap)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}

	return tx.Commit()
}

// researchRow is the flat database shape of a record.
type researchRow struct {
	ID             string    `db:"id"`
	Ticker         string    `db:"ticker"`
	Name           string    `db:"name"`
	Address        string    `db:"address"`
	Chain          string    `db:"chain"`
	Logo           string    `db:"logo"`
	Description    string    `db:"description"`
	Website        string    `db:"website"`
	PriceData      string    `db:"price_data"`
	Tokenomics     string    `db:"tokenomics"`
	OnChain        string    `db:"onchain"`
	Combined       string    `db:"combined"`
	RedFlags       string    `db:"red_flags"`
	PriceHistory   string    `db:"price_history"`
	RiskScore      int       `db:"risk_score"`
	RiskClass      string    `db:"risk_class"`
	Sentiment      string    `db:"sentiment"`
	SentimentScore int       `db:"sentiment_score"`
	SocialScore    int       `db:"social_score"`
	CreatedAt      time.Time `db:"created_at"`
}

// GetResearch loads one record by ID.
func (s *Store) GetResearch(ctx context.Context, id string) (model.ResearchRecord, error) {
	var row researchRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM researches WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ResearchRecord{}, ErrNotFound
	}
	if err != nil {
		return model.ResearchRecord{}, fmt.Errorf("loading research %s: %w", id, err)
	}

	record := model.ResearchRecord{
		ID: row.ID,
		Token: model.TokenIdentity{
			Ticker:      row.Ticker,
			Name:        row.Name,
			Address:     row.Address,
			Chain:       row.Chain,
			Logo:        row.Logo,
			Description: row.Description,
			Website:     row.Website,
		},
		Analysis: model.RiskAssessment{
			Score:          row.RiskScore,
			Class:          model.RiskClass(row.RiskClass),
			Sentiment:      model.Sentiment(row.Sentiment),
			SentimentScore: row.SentimentScore,
		},
		SocialScore: row.SocialScore,
		CreatedAt:   row.CreatedAt,
	}

	for name, dst := range map[string]interface{}{
		"price_data":    &record.PriceData,
		"tokenomics":    &record.Tokenomics,
		"onchain":       &record.OnChain,
		"red_flags":     &record.RedFlags,
		"price_history": &record.PriceHistory,
	} {
		if err := json.Unmarshal([]byte(blobFor(row, name)), dst); err != nil {
			return model.ResearchRecord{}, fmt.Errorf("decoding %s for %s: %w", name, id, err)
		}
	}
	if row.Combined != "" && row.Combined != "null" {
		record.Combined = &model.CombinedView{}
		if err := json.Unmarshal([]byte(row.Combined), record.Combined); err != nil {
			return model.ResearchRecord{}, fmt.Errorf("decoding combined for %s: %w", id, err)
		}
	}
	record.Analysis.RedFlags = record.RedFlags
	return record, nil
}

func blobFor(row researchRow, name string) string {
	switch name {
	case "price_data":
		return row.PriceData
	case "tokenomics":
		return row.Tokenomics
	case "onchain":
		return row.OnChain
	case "red_flags":
		return row.RedFlags
	case "price_history":
		return row.PriceHistory
	default:
		return "null"
	}
}

// HistoryQuery filters and pages the history listing.
type HistoryQuery struct {
	Limit  int
	Offset int
	Ticker string
	Risk   string
	Sort   string // "date" or "risk"
	Order  string // "asc" or "desc"
}

// History lists history entries, newest first by default, plus the
// total number of stored entries.
func (s *Store) History(ctx context.Context, q HistoryQuery) ([]model.HistoryEntry, int, error) {
	if q.Limit <= 0 || q.Limit > historyCap {
		q.Limit = historyCap
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var (
		where []string
		args  []interface{}
	)
	if q.Ticker != "" {
		where = append(where, "ticker LIKE ?")
		args = append(args, "%"+strings.ToUpper(q.Ticker)+"%")
	}
	if q.Risk != "" && q.Risk != "all" {
		where = append(where, "risk_class = ?")
		args = append(args, q.Risk)
	}

	query := "SELECT id, ticker, name, risk_score, risk_class, created_at FROM history"
	countQuery := "SELECT COUNT(*) FROM history"
	if len(where) > 0 {
		clause := " WHERE " + strings.Join(where, " AND ")
		query += clause
		countQuery += clause
	}

	// Sort columns are whitelisted, never interpolated from input
	sortColumn := "created_at"
	if q.Sort == "risk" {
		sortColumn = "risk_score"
	}
	sortOrder := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s LIMIT ? OFFSET ?", sortColumn, sortOrder)

	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("counting history: %w", err)
	}

	entries := []model.HistoryEntry{}
	listArgs := append(append([]interface{}{}, args...), q.Limit, q.Offset)
	if err := s.db.SelectContext(ctx, &entries, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("listing history: %w", err)
	}
	return entries, total, nil
}

// LogRequest appends an access-log row. Best effort: a logging failure
// never fails the request that triggered it.
func (s *Store) LogRequest(ctx context.Context, action string, details interface{}, ip, userAgent string) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO request_log (action, details, ip_address, user_agent)
		VALUES (?, ?, ?, ?)`, action, string(raw), ip, userAgent)
	if err != nil {
		logrus.WithError(err).Warn("failed to write request log")
	}
}

// Monitor is one active price-spike watch.
type Monitor struct {
	ID                 int64      `db:"id"`
	ResearchID         string     `db:"research_id"`
	Ticker             string     `db:"ticker"`
	CoinID             string     `db:"coin_id"`
	BaselinePrice      float64    `db:"baseline_price"`
	BaselineVolume     float64    `db:"baseline_volume"`
	PriceThresholdPct  float64    `db:"price_threshold_percentage"`
	VolumeThresholdPct float64    `db:"volume_threshold_percentage"`
	IsActive           bool       `db:"is_active"`
	CreatedAt          time.Time  `db:"created_at"`
	LastCheckAt        *time.Time `db:"last_check_at"`
}

// AddMonitor registers a price-spike watch for a researched token.
func (s *Store) AddMonitor(ctx context.Context, researchID, ticker, coinID string, price, volume float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitoring (research_id, ticker, coin_id, baseline_price, baseline_volume)
		VALUES (?, ?, ?, ?, ?)`, researchID, ticker, coinID, price, volume)
	if err != nil {
		return fmt.Errorf("adding monitor: %w", err)
	}
	return nil
}

// ActiveMonitors lists the watches the spike monitor should poll.
func (s *Store) ActiveMonitors(ctx context.Context) ([]Monitor, error) {
	monitors := []Monitor{}
	err := s.db.SelectContext(ctx, &monitors, `
		SELECT * FROM monitoring WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}
	return monitors, nil
}

// TouchMonitor records a completed check and optionally moves the
// baselines forward after an alert, so the same spike does not re-alert
// on every poll.
func (s *Store) TouchMonitor(ctx context.Context, id int64, newPrice, newVolume *float64) error {
	if newPrice != nil || newVolume != nil {
		_, err := s.db.ExecContext(ctx, `
			UPDATE monitoring SET
				baseline_price = COALESCE(?, baseline_price),
				baseline_volume = COALESCE(?, baseline_volume),
				last_check_at = CURRENT_TIMESTAMP
			WHERE id = ?`, newPrice, newVolume, id)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE monitoring SET last_check_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	return err
}

// DeactivateMonitor stops a watch.
func (s *Store) DeactivateMonitor(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE monitoring SET is_active = 0 WHERE id = ?`, id)
	return err
}
