package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"listing-crawler/internal/logging"
	"listing-crawler/pkg/models"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Config selects the storage backend.
type Config struct {
	Driver string
	DSN    string
}

// DBService handles database operations
type DBService struct {
	db      *sql.DB
	dialect dialect
	logger  zerolog.Logger
}

// NewDBService opens the database, verifies it is reachable and creates the
// tables if they don't exist
func NewDBService(ctx context.Context, cfg Config) (*DBService, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if cfg.Driver == DriverMySQL {
		if dsn, err = prepareMySQL(ctx, dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	dbs := &DBService{db: db, dialect: d, logger: logging.NewLogger("db")}
	if err := dbs.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return dbs, nil
}

// prepareMySQL creates the target database if needed and returns a DSN that
// parses DATETIME columns into time.Time
func prepareMySQL(ctx context.Context, dsn string) (string, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	mc.ParseTime = true

	if name := mc.DBName; name != "" {
		server := mc.Clone()
		server.DBName = ""
		conn, err := sql.Open(DriverMySQL, server.FormatDSN())
		if err != nil {
			return "", err
		}
		defer conn.Close()
		if _, err := conn.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS `"+name+"` CHARACTER SET utf8mb4"); err != nil {
			return "", fmt.Errorf("create database %s: %w", name, err)
		}
	}
	return mc.FormatDSN(), nil
}

func (dbs *DBService) createSchema(ctx context.Context) error {
	for _, stmt := range dbs.dialect.tables {
		if _, err := dbs.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// Create indexes for better query performance
	for _, idx := range dbs.dialect.indexes {
		if _, err := dbs.db.ExecContext(ctx, idx); err != nil {
			dbs.logger.Warn().Err(err).Msg("Failed to create index")
		}
	}
	return nil
}

// Ping checks that the database is still reachable
func (dbs *DBService) Ping(ctx context.Context) error {
	return dbs.db.PingContext(ctx)
}

// Exists reports whether a listing with the given torrent link is stored
func (dbs *DBService) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	err := dbs.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE torrent_href = ?", key).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert stores a single listing. A listing whose torrent link is already
// stored is reported as a duplicate, not an error
func (dbs *DBService) Insert(ctx context.Context, l models.Listing) (models.InsertOutcome, error) {
	if l.Key() == "" {
		return "", errors.New("listing has no torrent link")
	}

	_, err := dbs.db.ExecContext(ctx,
		"INSERT INTO listings(category, title, torrent_href, magnet_href, size, date, html) VALUES(?,?,?,?,?,?,?)",
		l.Category, l.Title, l.TorrentHref, l.MagnetHref, l.Size, l.Date, l.HTML,
	)
	switch {
	case err == nil:
		return models.OutcomeInserted, nil
	case isUniqueViolation(err):
		return models.OutcomeDuplicate, nil
	default:
		return "", err
	}
}

// isUniqueViolation recognises duplicate-key errors of both drivers
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// Close closes the database connection
func (dbs *DBService) Close() {
	dbs.db.Close()
}

const listingColumns = "id, category, title, torrent_href, magnet_href, size, date, pushed_to_transmission, created_at"

// GetAllListings retrieves all listings in insertion order
func (dbs *DBService) GetAllListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := dbs.db.QueryContext(ctx, "SELECT "+listingColumns+" FROM listings ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetListingsByPattern retrieves the newest listings whose title contains pattern
func (dbs *DBService) GetListingsByPattern(ctx context.Context, pattern string, limit int) ([]models.Listing, error) {
	likePattern := "%" + pattern + "%"
	rows, err := dbs.db.QueryContext(ctx,
		"SELECT "+listingColumns+" FROM listings WHERE title LIKE ? ORDER BY id DESC LIMIT ?",
		likePattern, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetLatestListings retrieves the most recently stored listings
func (dbs *DBService) GetLatestListings(ctx context.Context, limit int) ([]models.Listing, error) {
	rows, err := dbs.db.QueryContext(ctx,
		"SELECT "+listingColumns+" FROM listings ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetListingCount returns the total count and magnet count
func (dbs *DBService) GetListingCount(ctx context.Context) (total, withMagnet int, err error) {
	err = dbs.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(CASE WHEN magnet_href != '' THEN 1 END) FROM listings",
	).Scan(&total, &withMagnet)
	return
}

// GetMatchCount returns the count of listings whose title contains pattern
func (dbs *DBService) GetMatchCount(ctx context.Context, pattern string) (int, error) {
	likePattern := "%" + pattern + "%"
	var count int
	err := dbs.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings WHERE title LIKE ?", likePattern).Scan(&count)
	return count, err
}

// MarkPushed records that a listing's magnet link was sent to Transmission
func (dbs *DBService) MarkPushed(ctx context.Context, id int64) error {
	_, err := dbs.db.ExecContext(ctx, "UPDATE listings SET pushed_to_transmission = 1 WHERE id = ?", id)
	return err
}

// scanListings reads all listing records from the rows
func scanListings(rows *sql.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		var category, title, magnet, size, date sql.NullString
		err := rows.Scan(&l.ID, &category, &title, &l.TorrentHref, &magnet, &size, &date, &l.PushedToTransmission, &l.CreatedAt)
		if err != nil {
			return nil, err
		}
		l.Category, l.Title, l.MagnetHref, l.Size, l.Date = category.String, title.String, magnet.String, size.String, date.String
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
