// Package archive persists score cards so a crew member's scoring history
// survives restarts. It speaks database/sql with the sqlite and postgres
// drivers.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/pkg/logger"
	"github.com/xplor/crewscore/pkg/metrics"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultHistoryLimit    = 50
	defaultMaxOpenConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
)

//go:embed sql/*
var ddl embed.FS

const insertCard = `INSERT INTO score_cards
    (submission_id, crew_id, scheme, total, tier, breakdown, scored_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (submission_id) DO NOTHING`

const selectHistory = `SELECT submission_id, crew_id, scheme, total, tier, breakdown, scored_at
FROM score_cards
WHERE crew_id = ?
ORDER BY scored_at DESC, submission_id
LIMIT ?`

// SQLStore archives score cards in a SQL database.
type SQLStore struct {
	db     *sql.DB
	driver string
	log    logger.Logger

	maxOpen         int
	defaultLimit    int
	connMaxLifetime time.Duration
}

// Open connects to the database and creates the schema when missing.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrMissingDSN
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s archive: %w", driver, err)
	}
	s := newStore(db, driver, opts...)

	if driver == DriverSQLite {
		// sqlite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpen)
		db.SetMaxIdleConns(s.maxOpen)
	}
	db.SetConnMaxLifetime(s.connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s archive: %w", driver, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info(ctx, "score archive ready", logger.String("driver", driver))
	return s, nil
}

// New wraps an existing connection. The schema is not touched.
func New(db *sql.DB, driver string, opts ...Option) (*SQLStore, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	return newStore(db, driver, opts...), nil
}

func newStore(db *sql.DB, driver string, opts ...Option) *SQLStore {
	s := &SQLStore{
		db:              db,
		driver:          driver,
		log:             logger.NewNop(),
		maxOpen:         defaultMaxOpenConns,
		defaultLimit:    defaultHistoryLimit,
		connMaxLifetime: defaultConnMaxLifetime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func checkDriver(driver string) error {
	switch driver {
	case DriverSQLite, DriverPostgres:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Driver returns the configured driver name.
func (s *SQLStore) Driver() string { return s.driver }

// Migrate creates the score_cards table and its index.
func (s *SQLStore) Migrate(ctx context.Context) error {
	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		return fmt.Errorf("read archive schema: %w", err)
	}
	for _, stmt := range strings.Split(string(b), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create archive schema: %w", err)
		}
	}
	return nil
}

// Save stores a card. Saving the same submission twice is a no-op.
func (s *SQLStore) Save(ctx context.Context, card model.ScoreCard) error {
	start := time.Now()
	defer func() { metrics.RecordArchiveLatency("save", msSince(start)) }()

	if card.SubmissionID == "" || card.CrewID == "" {
		metrics.RecordArchiveWrite("invalid")
		return ErrInvalidCard
	}
	breakdown, err := json.Marshal(card.Breakdown)
	if err != nil {
		metrics.RecordArchiveWrite("error")
		return fmt.Errorf("encode breakdown: %w", err)
	}
	if card.ScoredAt.IsZero() {
		card.ScoredAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, s.rebind(insertCard),
		card.SubmissionID, card.CrewID, card.Scheme, card.Total, card.Tier,
		string(breakdown), card.ScoredAt.UTC().UnixNano())
	if err != nil {
		metrics.RecordArchiveWrite("error")
		metrics.RecordErrorByComponent("archive", "save")
		return fmt.Errorf("save score card %s: %w", card.SubmissionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		metrics.RecordArchiveWrite("duplicate")
		return nil
	}
	metrics.RecordArchiveWrite("ok")
	return nil
}

// History returns up to limit cards for a crew member, newest first.
func (s *SQLStore) History(ctx context.Context, crewID string, limit int) ([]model.ScoreCard, error) {
	start := time.Now()
	defer func() { metrics.RecordArchiveLatency("history", msSince(start)) }()

	if limit < 1 {
		limit = s.defaultLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(selectHistory), crewID, limit)
	if err != nil {
		metrics.RecordErrorByComponent("archive", "history")
		return nil, fmt.Errorf("query history for %s: %w", crewID, err)
	}
	defer rows.Close()

	out := make([]model.ScoreCard, 0)
	for rows.Next() {
		var (
			card      model.ScoreCard
			breakdown string
			scoredAt  int64
		)
		if err := rows.Scan(&card.SubmissionID, &card.CrewID, &card.Scheme, &card.Total,
			&card.Tier, &breakdown, &scoredAt); err != nil {
			return nil, fmt.Errorf("scan score card: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &card.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown of %s: %w", card.SubmissionID, err)
		}
		card.ScoredAt = time.Unix(0, scoredAt).UTC()
		out = append(out, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history for %s: %w", crewID, err)
	}
	return out, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1..$n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
