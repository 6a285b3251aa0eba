package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snowflakedb/gosnowflake"

	"github.com/couchcryptid/co2-weather-etl/internal/config"
)

// Conn is the warehouse handle for one pipeline run. Callers own it and must
// Close it on every exit path.
type Conn struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewConn wraps an open database handle.
func NewConn(db *sqlx.DB, logger *slog.Logger) *Conn {
	return &Conn{db: db, logger: logger}
}

// Open connects to the warehouse selected by cfg.Dialect and returns the
// matching dialect.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Conn, Dialect, error) {
	dialect, err := DialectFor(cfg.Dialect)
	if err != nil {
		return nil, Dialect{}, err
	}
	var conn *Conn
	if cfg.Dialect == config.DialectDuckDB {
		conn, err = OpenDuckDB(ctx, cfg.DuckDBPath, logger)
	} else {
		conn, err = OpenSnowflake(ctx, cfg.Snowflake, logger)
	}
	return conn, dialect, err
}

// DialectFor returns the step sequence for a dialect name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case config.DialectSnowflake:
		return Snowflake(), nil
	case config.DialectDuckDB:
		return DuckDB(), nil
	default:
		return Dialect{}, fmt.Errorf("unsupported warehouse dialect: %s", name)
	}
}

// OpenSnowflake validates the connection parameters and pings the account.
func OpenSnowflake(ctx context.Context, sf config.Snowflake, logger *slog.Logger) (*Conn, error) {
	if err := sf.Validate(); err != nil {
		return nil, err
	}
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   sf.Account,
		User:      sf.User,
		Password:  sf.Password,
		Warehouse: sf.Warehouse,
		Database:  sf.Database,
		Schema:    sf.Schema,
		Role:      sf.Role,
	})
	if err != nil {
		return nil, fmt.Errorf("build snowflake dsn: %w", err)
	}
	conn, err := open(ctx, "snowflake", dsn, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("warehouse connection established",
		"dialect", config.DialectSnowflake, "account", sf.Account, "database", sf.Database, "schema", sf.Schema, "role", sf.Role)
	return conn, nil
}

// OpenDuckDB opens (or creates) a DuckDB database file. An empty path opens
// an in-memory database. The binary must import the go-duckdb driver.
func OpenDuckDB(ctx context.Context, path string, logger *slog.Logger) (*Conn, error) {
	conn, err := open(ctx, "duckdb", path, logger)
	if err != nil {
		return nil, err
	}
	// One connection keeps in-memory databases and the single-writer file
	// lock consistent across statements.
	conn.db.SetMaxOpenConns(1)
	logger.Info("warehouse connection established", "dialect", config.DialectDuckDB, "path", path)
	return conn, nil
}

func open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Conn, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewConn(db, logger), nil
}

// Exec runs a statement. queryType labels the statement in logs.
func (c *Conn) Exec(ctx context.Context, queryType, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("warehouse statement failed", "query_type", queryType, "query", query, "error", err)
		return nil, err
	}
	c.logger.Debug("warehouse statement executed", "query_type", queryType, "duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// Get scans a single row into dest.
func (c *Conn) Get(ctx context.Context, queryType string, dest any, query string, args ...any) error {
	start := time.Now()
	if err := c.db.GetContext(ctx, dest, query, args...); err != nil {
		c.logger.Error("warehouse query failed", "query_type", queryType, "query", query, "error", err)
		return err
	}
	c.logger.Debug("warehouse query executed", "query_type", queryType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Select scans all rows into dest, a pointer to a slice.
func (c *Conn) Select(ctx context.Context, queryType string, dest any, query string, args ...any) error {
	start := time.Now()
	if err := c.db.SelectContext(ctx, dest, query, args...); err != nil {
		c.logger.Error("warehouse query failed", "query_type", queryType, "query", query, "error", err)
		return err
	}
	c.logger.Debug("warehouse query executed", "query_type", queryType, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Query returns raw rows for result sets whose columns are not known up front.
func (c *Conn) Query(ctx context.Context, queryType, query string, args ...any) (*sqlx.Rows, error) {
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		c.logger.Error("warehouse query failed", "query_type", queryType, "query", query, "error", err)
		return nil, err
	}
	return rows, nil
}

// Ping checks the connection is still usable.
func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the connection.
func (c *Conn) Close() error {
	return c.db.Close()
}
