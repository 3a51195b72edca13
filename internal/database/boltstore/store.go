// Package boltstore provides persistent storage using BoltDB (bbolt).
// It implements the moderation.Store interface and SIF persistence for
// single-node deployments.
package boltstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for organizing data
var (
	// BucketBlocks stores block relationships keyed by "blocker:blocked"
	BucketBlocks = []byte("blocks")

	// BucketBlocksByBlocked indexes block relationships by the blocked side,
	// keyed by "blocked:blocker"
	BucketBlocksByBlocked = []byte("blocks_by_blocked")

	// BucketReports stores reports keyed by report ID
	BucketReports = []byte("reports")

	// BucketReportsPending orders pending reports by creation time,
	// keyed by "paddednano:reportID"
	BucketReportsPending = []byte("reports_pending")

	// BucketReportsByContent indexes reports by content item,
	// keyed by "contentID:reportID"
	BucketReportsByContent = []byte("reports_by_content")

	// BucketReportsByAuthor indexes reports by reported author,
	// keyed by "authorID:reportID"
	BucketReportsByAuthor = []byte("reports_by_author")

	// BucketReportsByReporter indexes reports by reporter and creation time,
	// keyed by "reporterID:paddednano:reportID"
	BucketReportsByReporter = []byte("reports_by_reporter")

	// BucketReportPairs enforces one report per (reporter, content) pair,
	// keyed by "reporterID:contentID"
	BucketReportPairs = []byte("report_pairs")

	// BucketAuditLog stores moderator actions keyed by "paddednano:id"
	BucketAuditLog = []byte("audit_log")

	// BucketAuditByReport indexes moderator actions by report,
	// keyed by "reportID:paddednano:id"
	BucketAuditByReport = []byte("audit_by_report")

	// BucketSIFs stores SIF messages keyed by SIF ID
	BucketSIFs = []byte("sifs")

	// BucketSIFsByAuthor indexes SIFs by author, keyed by "authorID:sifID"
	BucketSIFsByAuthor = []byte("sifs_by_author")
)

// Store wraps a BoltDB database and provides access to specialized stores.
type Store struct {
	db *bolt.DB
}

// Options configures the BoltDB store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "isayitforward.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens a BoltDB database at the specified path.
// It creates all necessary buckets if they don't exist.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "isayitforward.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	// Ensure parent directory exists
	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			BucketBlocks,
			BucketBlocksByBlocked,
			BucketReports,
			BucketReportsPending,
			BucketReportsByContent,
			BucketReportsByAuthor,
			BucketReportsByReporter,
			BucketReportPairs,
			BucketAuditLog,
			BucketAuditByReport,
			BucketSIFs,
			BucketSIFsByAuthor,
		}

		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists(bucket)
			if err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying BoltDB instance for advanced operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// ModerationStore returns a moderation store backed by this database.
func (s *Store) ModerationStore() *ModerationStore {
	return &ModerationStore{db: s.db}
}

// SIFStore returns a SIF store backed by this database.
func (s *Store) SIFStore() *SIFStore {
	return &SIFStore{db: s.db}
}

// Stats returns database statistics.
func (s *Store) Stats() bolt.Stats {
	return s.db.Stats()
}
