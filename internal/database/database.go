package database

import (
	"fmt"
	"strings"

	"github.com/web-casa/aiui/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector picks the gorm driver for a database URL.
// postgres:// and postgresql:// go to Postgres, mysql:// to MySQL,
// anything else is treated as a SQLite path.
func Dialector(url string) (gorm.Dialector, string) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), "postgres"
	case strings.HasPrefix(url, "mysql://"):
		return mysql.Open(mysqlDSN(strings.TrimPrefix(url, "mysql://"))), "mysql"
	default:
		return sqlite.Open(sqliteDSN(url)), "sqlite"
	}
}

// Open connects to the database without migrating
func Open(url string, log *zap.Logger) (*gorm.DB, error) {
	dialector, kind := Dialector(url)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", kind, err)
	}

	if kind == "sqlite" {
		// WAL for concurrent reads; foreign keys so cascades and SET NULL apply.
		db.Exec("PRAGMA journal_mode=WAL")
		db.Exec("PRAGMA foreign_keys=ON")
	}

	log.Info("database connected", zap.String("driver", kind))
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Init opens the database and runs auto-migration
func Init(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(url, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database initialized")
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_foreign_keys") {
		return path
	}
	if strings.Contains(path, "?") {
		return path + "&_foreign_keys=1"
	}
	return path + "?_foreign_keys=1"
}

// mysqlDSN turns user:pass@host:port/db into the go-sql-driver form
// user:pass@tcp(host:port)/db?parseTime=true
func mysqlDSN(rest string) string {
	creds, hostAndDB, found := strings.Cut(rest, "@")
	if !found {
		hostAndDB, creds = rest, ""
	}
	host, dbAndQuery, _ := strings.Cut(hostAndDB, "/")
	dsn := fmt.Sprintf("tcp(%s)/%s", host, dbAndQuery)
	if creds != "" {
		dsn = creds + "@" + dsn
	}
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	return dsn
}
