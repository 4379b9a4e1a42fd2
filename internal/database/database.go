package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/burstkit/internal/config"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// DB wraps a connection to the annotations store.
type DB struct {
	conn   *sqlx.DB
	driver string
	now    func() time.Time
}

// Open connects to a database with the given driver name and DSN.
// Supported drivers are mysql, postgres and sqlite. For sqlite the DSN is a
// file path and the annotations schema is migrated on open.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "mysql", "postgres":
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		// Store times in the layout SQLite's date functions understand.
		dsn += "?_time_format=sqlite"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == "sqlite" {
		// One connection keeps an in-transaction DELETE visible to the
		// inserts that follow and avoids SQLITE_BUSY between them.
		conn.SetMaxOpenConns(1)
		if err := migrate(conn.DB); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
	}

	return &DB{conn: conn, driver: driver, now: time.Now}, nil
}

// Connect opens the database described by cfg and checks that it answers.
func Connect(ctx context.Context, cfg *config.Config) (*DB, error) {
	var dsn string
	switch cfg.DB.Driver {
	case "mysql":
		dsn = MySQLDSN(cfg.DB)
	case "postgres":
		dsn = PostgresDSN(cfg.DB)
	case "sqlite":
		dsn = cfg.SQLitePath()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DB.Driver)
	}

	db, err := Open(cfg.DB.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.conn.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.DB.Driver, err)
	}
	return db, nil
}

// MySQLDSN builds a DSN that stores and reads times in UTC.
func MySQLDSN(c config.DB) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	mc.DBName = c.Schema
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"time_zone": "'+00:00'"}
	return mc.FormatDSN()
}

// PostgresDSN builds a lib/pq connection string.
func PostgresDSN(c config.DB) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable timezone=UTC",
		quoteDSNValue(c.Host), c.Port, quoteDSNValue(c.User), quoteDSNValue(c.Password), quoteDSNValue(c.Schema))
}

func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	for _, r := range v {
		if r == ' ' || r == '\'' || r == '\\' {
			return "'" + escapeDSN(v) + "'"
		}
	}
	return v
}

func escapeDSN(v string) string {
	out := make([]rune, 0, len(v))
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Driver returns the driver name the database was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// quote quotes an identifier for the current driver. The annotations table
// has a column named user, which Postgres reserves.
func (db *DB) quote(name string) string {
	if db.driver == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
