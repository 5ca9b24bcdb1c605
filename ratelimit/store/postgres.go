package store // import "github.com/splunklabhq/splunklab/backend/services/ratelimit/store"

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/splunklabhq/splunklab/backend/services/metadata"
	"github.com/splunklabhq/splunklab/backend/services/types"
	"github.com/splunklabhq/splunklab/backend/services/utils"
	logger "github.com/splunklabhq/splunklab/backend/services/lablogger"
)

// PostgresTier is the primary durable tier, backed by the portal database.
type PostgresTier struct {
	pool *pgxpool.Pool
}

const localDevDatabaseURL = "user=postgres host=localhost port=5432 dbname=postgres password=splunklabpass"

// getDBConnString returns the portal database connection string.
func getDBConnString() (string, error) {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	if metadata.IsLocalEnv() {
		return localDevDatabaseURL, nil
	}
	return "", utils.MakeError("couldn't get DB connection string: DATABASE_URL is uninitialized")
}

// NewPostgresTier connects to the portal database and ensures the rate-limit
// table exists.
func NewPostgresTier(ctx context.Context) (*PostgresTier, error) {
	connString, err := getDBConnString()
	if err != nil {
		return nil, err
	}

	pgxConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, utils.MakeError("couldn't parse database connection string: %s", err)
	}
	pgxConfig.MaxConns = 4
	pgxConfig.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.ConnectConfig(ctx, pgxConfig)
	if err != nil {
		return nil, utils.MakeError("couldn't connect to the portal database: %s", err)
	}

	const createTable = `
		CREATE TABLE IF NOT EXISTS rate_limits (
			user_key    text PRIMARY KEY,
			click_count integer NOT NULL,
			last_reset  timestamptz NOT NULL
		)`
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, utils.MakeError("couldn't ensure rate_limits table: %s", err)
	}

	return &PostgresTier{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (t *PostgresTier) Close() {
	t.pool.Close()
}

func (t *PostgresTier) Name() string {
	return "postgres"
}

// Load reads the user's record, importing a legacy single-key row first if
// one still exists. The legacy schema kept one row per user keyed as
// `winpass:<email>`; it is imported once and the legacy row deleted.
func (t *PostgresTier) Load(ctx context.Context, userKey types.UserEmail) (*Record, error) {
	if err := t.migrateLegacy(ctx, userKey); err != nil {
		// Migration failure must not block the read path.
		logger.Warningf("legacy rate-limit migration failed for %s: %s", userKey, err)
	}

	var clickCount int
	var lastReset pgtype.Timestamptz

	const query = `SELECT click_count, last_reset FROM rate_limits WHERE user_key = $1`
	err := t.pool.QueryRow(ctx, query, string(userKey)).Scan(&clickCount, &lastReset)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.MakeError("couldn't read rate-limit row for %s: %s", userKey, err)
	}

	return &Record{
		ClickCount:    clickCount,
		LastResetTime: lastReset.Time,
	}, nil
}

// Save upserts the user's record.
func (t *PostgresTier) Save(ctx context.Context, userKey types.UserEmail, record Record) error {
	const query = `
		INSERT INTO rate_limits (user_key, click_count, last_reset)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_key) DO UPDATE
		SET click_count = EXCLUDED.click_count, last_reset = EXCLUDED.last_reset`

	_, err := t.pool.Exec(ctx, query, string(userKey), record.ClickCount, pgtype.Timestamptz{
		Time:   record.LastResetTime,
		Status: pgtype.Present,
	})
	if err != nil {
		return utils.MakeError("couldn't upsert rate-limit row for %s: %s", userKey, err)
	}

	return nil
}

// Clear removes the user's record.
func (t *PostgresTier) Clear(ctx context.Context, userKey types.UserEmail) error {
	const query = `DELETE FROM rate_limits WHERE user_key = $1`
	if _, err := t.pool.Exec(ctx, query, string(userKey)); err != nil {
		return utils.MakeError("couldn't delete rate-limit row for %s: %s", userKey, err)
	}
	return nil
}

// migrateLegacy performs the one-time import of a legacy single-key record,
// then deletes the legacy row so the import never repeats.
func (t *PostgresTier) migrateLegacy(ctx context.Context, userKey types.UserEmail) error {
	legacyKey := "winpass:" + string(userKey)

	var clicks int
	var resetAt pgtype.Timestamptz

	const legacyQuery = `SELECT clicks, reset_at FROM legacy_click_counters WHERE counter_key = $1`
	err := t.pool.QueryRow(ctx, legacyQuery, legacyKey).Scan(&clicks, &resetAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		// The legacy table is dropped entirely once every user has been
		// migrated, at which point this query starts failing; treat a
		// missing table the same as no rows.
		return nil
	}

	if err := t.Save(ctx, userKey, Record{ClickCount: clicks, LastResetTime: resetAt.Time}); err != nil {
		return err
	}

	const legacyDelete = `DELETE FROM legacy_click_counters WHERE counter_key = $1`
	if _, err := t.pool.Exec(ctx, legacyDelete, legacyKey); err != nil {
		return utils.MakeError("couldn't delete legacy rate-limit row for %s: %s", userKey, err)
	}

	logger.Infof("Imported legacy rate-limit record for %s", userKey)
	return nil
}
