package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // registers the pure Go "sqlite" driver

	"github.com/labreserve/lab-reservation/internal/config"
)

// Supported values for config.DBConfig.Driver.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to the configured database and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL:
		db, err = sql.Open(DriverMySQL, mysqlDSN(cfg))
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, SQLiteDSN(cfg.Path))
		if err != nil {
			return nil, err
		}
		// sqlite allows a single writer; one connection keeps writes serialized
		// and lets the unique index report conflicts instead of SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// mysqlDSN builds the go-sql-driver DSN. parseTime=true maps DATETIME to
// time.Time and loc=UTC keeps times consistent.
func mysqlDSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + cfg.Port
	mc.DBName = cfg.Name
	mc.ParseTime = true
	// report matched rather than changed rows so no-op updates are not NotFound
	mc.ClientFoundRows = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// SQLiteDSN returns a modernc sqlite DSN for the file at path with foreign
// keys enforced on every connection and timestamps written in sqlite's
// native text layout.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
}
