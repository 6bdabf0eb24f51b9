package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/wesm/github-issue-link/internal/models"
)

// DB represents the link ledger database connection
type DB struct {
	*sqlx.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS external_issues (
		id TEXT PRIMARY KEY,
		organization_id INTEGER NOT NULL,
		integration_id INTEGER NOT NULL,
		external_key TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(integration_id, external_key)
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SaveExternalIssue saves a link record, updating title and description when the key is already linked.
// ID and CreatedAt are filled in when empty; the stored row is returned.
func (db *DB) SaveExternalIssue(issue *models.ExternalIssue) (*models.ExternalIssue, error) {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO external_issues (id, organization_id, integration_id, external_key, title, description, created_at)
	VALUES (:id, :organization_id, :integration_id, :external_key, :title, :description, :created_at)
	ON CONFLICT(integration_id, external_key) DO UPDATE SET
		title = excluded.title,
		description = excluded.description
	`

	if _, err := db.NamedExec(query, issue); err != nil {
		return nil, fmt.Errorf("failed to save external issue: %w", err)
	}

	return db.GetExternalIssue(issue.IntegrationID, issue.Key)
}

// GetExternalIssue gets a link record by integration and key, returning nil when there is none
func (db *DB) GetExternalIssue(integrationID int64, key string) (*models.ExternalIssue, error) {
	query := `
	SELECT id, organization_id, integration_id, external_key, title, description, created_at
	FROM external_issues
	WHERE integration_id = ? AND external_key = ?
	`

	var issue models.ExternalIssue
	if err := db.Get(&issue, query, integrationID, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get external issue: %w", err)
	}

	return &issue, nil
}

// ListExternalIssues lists the link records of an integration, oldest first
func (db *DB) ListExternalIssues(integrationID int64) ([]models.ExternalIssue, error) {
	query := `
	SELECT id, organization_id, integration_id, external_key, title, description, created_at
	FROM external_issues
	WHERE integration_id = ?
	ORDER BY created_at, external_key
	`

	var issues []models.ExternalIssue
	if err := db.Select(&issues, query, integrationID); err != nil {
		return nil, fmt.Errorf("failed to list external issues: %w", err)
	}

	return issues, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
