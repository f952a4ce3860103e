package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"CryptoSentinel/internal/model"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLRecorder persists history to SQLite or Postgres.
type SQLRecorder struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewSQLRecorder opens the database and runs migrations.
func NewSQLRecorder(driver, dsn string, logger *logrus.Logger) (*SQLRecorder, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == DriverSQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// WAL lets dashboards read while the bot writes.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	} else if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &SQLRecorder{db: db, driver: driver, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.WithField("driver", driver).Info("SQL recorder opened")
	return r, nil
}

// ensureDir creates the parent directory of a SQLite file DSN.
func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}

func (r *SQLRecorder) migrate() error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS opportunities (
			id               ` + id + `,
			opportunity_id   TEXT NOT NULL,
			timestamp        BIGINT NOT NULL,
			symbol           TEXT NOT NULL,
			price_change_pct DOUBLE PRECISION,
			current_price    DOUBLE PRECISION,
			volume_24h       DOUBLE PRECISION,
			confidence_score DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_ts ON opportunities(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_opportunities_symbol ON opportunities(symbol)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id            ` + id + `,
			timestamp     BIGINT NOT NULL,
			opportunities INTEGER,
			recipients    INTEGER,
			delivered     INTEGER,
			failed        INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *SQLRecorder) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRecorder) RecordOpportunity(opp *model.Opportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(r.rebind(`INSERT INTO opportunities
		(opportunity_id, timestamp, symbol, price_change_pct, current_price, volume_24h, confidence_score)
		VALUES (?,?,?,?,?,?,?)`),
		opp.ID, opp.DetectedAt.Unix(), opp.Symbol,
		opp.PriceChangePct, opp.CurrentPrice, opp.Volume24h, opp.ConfidenceScore,
	)
	return err
}

func (r *SQLRecorder) RecordAlert(evt *AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sentAt := evt.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	_, err := r.db.Exec(r.rebind(`INSERT INTO alerts
		(timestamp, opportunities, recipients, delivered, failed)
		VALUES (?,?,?,?,?)`),
		sentAt.Unix(), evt.Opportunities, evt.Recipients, evt.Delivered, evt.Failed,
	)
	return err
}

func (r *SQLRecorder) Prune(before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, table := range []string{"opportunities", "alerts"} {
		res, err := r.db.Exec(r.rebind("DELETE FROM "+table+" WHERE timestamp < ?"), before.Unix())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func (r *SQLRecorder) Close() error {
	r.logger.Info("Closing SQL recorder")
	return r.db.Close()
}
