// Package mysql provides a MySQL implementation of the memory store.
//
// Embeddings are stored as JSON text; MySQL has no native vector type in the
// versions this backend targets, so similarity scoring happens in the
// retrieval engine as with the SQLite backend.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains MySQL configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	TableName string
}

// NewClient creates a new MySQL store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(128) NOT NULL,
			type VARCHAR(32) NOT NULL,
			content LONGTEXT NOT NULL,
			summary TEXT,
			keywords JSON,
			embedding LONGTEXT NOT NULL,
			importance DOUBLE DEFAULT 0.5,
			confidence DOUBLE DEFAULT 1.0,
			source VARCHAR(32),
			session_id VARCHAR(128),
			message_id VARCHAR(128),
			created_at DATETIME,
			last_accessed_at DATETIME,
			access_count BIGINT DEFAULT 0,
			decay_factor DOUBLE DEFAULT 1.0,
			is_active TINYINT(1) DEFAULT 1,
			INDEX idx_user_active (user_id, is_active)
		)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Create persists a new record.
func (c *Client) Create(ctx context.Context, record *storage.Record) error {
	if record.ID == 0 || record.UserID == "" || record.Content == "" {
		return fmt.Errorf("Create: %w", storage.ErrInvalidRecord)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	embeddingJSON, err := json.Marshal(record.Embedding)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	keywordsJSON, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, type, content, summary, keywords, embedding, importance,
		 confidence, source, session_id, message_id, created_at, access_count,
		 decay_factor, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Type,
		record.Content,
		record.Summary,
		string(keywordsJSON),
		string(embeddingJSON),
		record.Importance,
		record.Confidence,
		record.Source,
		record.SessionID,
		record.MessageID,
		record.CreatedAt,
		record.AccessCount,
		record.DecayFactor,
		record.IsActive,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	return nil
}

// Get retrieves a record by ID, active or not.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns, c.tableName)

	row := c.db.QueryRowContext(ctx, query, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return record, nil
}

// GetActiveByUser returns all active records owned by userID.
func (c *Client) GetActiveByUser(ctx context.Context, userID string) ([]*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ? AND is_active = 1",
		selectColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("GetActiveByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

// GetActive returns all active records across users (decay pass scan).
func (c *Client) GetActive(ctx context.Context) ([]*storage.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE is_active = 1",
		selectColumns, c.tableName)

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("GetActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

// Update applies a partial mutation to a record.
func (c *Client) Update(ctx context.Context, id int64, mut *storage.Mutation) error {
	if mut.IsZero() {
		return nil
	}

	var sets []string
	var args []interface{}

	if mut.Importance != nil {
		sets = append(sets, "importance = ?")
		args = append(args, *mut.Importance)
	}
	if mut.DecayFactor != nil {
		sets = append(sets, "decay_factor = ?")
		args = append(args, *mut.DecayFactor)
	}
	if mut.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *mut.Summary)
	}
	if mut.LastAccessedAt != nil {
		sets = append(sets, "last_accessed_at = ?")
		args = append(args, *mut.LastAccessedAt)
	}
	if mut.AccessCountDelta != 0 {
		sets = append(sets, "access_count = access_count + ?")
		args = append(args, mut.AccessCountDelta)
	}

	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		c.tableName, strings.Join(sets, ", "))

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Update: %w", storage.ErrNotFound)
	}

	return nil
}

// SetActive flips the active flag on a record.
func (c *Client) SetActive(ctx context.Context, id int64, active bool) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = ? WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("SetActive: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetActive: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("SetActive: %w", storage.ErrNotFound)
	}

	return nil
}

// Purge physically deletes a record.
func (c *Client) Purge(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Purge: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Purge: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("Purge: %w", storage.ErrNotFound)
	}

	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

const selectColumns = `id, user_id, type, content, summary, keywords, embedding,
	importance, confidence, source, session_id, message_id, created_at,
	last_accessed_at, access_count, decay_factor, is_active`

// collectRecords drains rows into a slice of records.
func collectRecords(rows *sql.Rows) ([]*storage.Record, error) {
	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// scanRecord scans a record from a database row or rows.
func scanRecord(scanner interface{}) (*storage.Record, error) {
	var record storage.Record
	var summary, keywordsStr, source, sessionID, messageID sql.NullString
	var embeddingStr string
	var createdAt, lastAccessedAt sql.NullTime

	dest := []interface{}{
		&record.ID,
		&record.UserID,
		&record.Type,
		&record.Content,
		&summary,
		&keywordsStr,
		&embeddingStr,
		&record.Importance,
		&record.Confidence,
		&source,
		&sessionID,
		&messageID,
		&createdAt,
		&lastAccessedAt,
		&record.AccessCount,
		&record.DecayFactor,
		&record.IsActive,
	}

	var err error
	switch s := scanner.(type) {
	case *sql.Row:
		err = s.Scan(dest...)
	case *sql.Rows:
		err = s.Scan(dest...)
	default:
		return nil, fmt.Errorf("unsupported scanner type")
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(embeddingStr), &record.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	if keywordsStr.Valid && keywordsStr.String != "" {
		if err := json.Unmarshal([]byte(keywordsStr.String), &record.Keywords); err != nil {
			return nil, fmt.Errorf("parse keywords: %w", err)
		}
	}

	record.Summary = summary.String
	record.Source = source.String
	record.SessionID = sessionID.String
	record.MessageID = messageID.String
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time
	}
	if lastAccessedAt.Valid {
		record.LastAccessedAt = &lastAccessedAt.Time
	}

	return &record, nil
}
