// Package sqlite provides a SQLite implementation of the memory store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and single-process deployments. Vectors and keyword lists are stored as JSON
// strings in TEXT fields; similarity scoring happens in the retrieval engine,
// not in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Defaults to "memories".
	TableName string
}

// NewClient creates a new SQLite store client.
//
// Parameters:
//   - cfg: Configuration containing the database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if the connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
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

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			keywords TEXT,
			embedding TEXT NOT NULL,
			importance REAL DEFAULT 0.5,
			confidence REAL DEFAULT 1.0,
			source TEXT,
			session_id TEXT,
			message_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at DATETIME,
			access_count INTEGER DEFAULT 0,
			decay_factor REAL DEFAULT 1.0,
			is_active INTEGER DEFAULT 1
		)
	`, c.tableName)

	_, err := c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user_active ON %s(user_id, is_active)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Create persists a new record.
//
// Timestamps are assigned if absent. Records with a zero ID, empty UserID or
// empty Content are rejected with storage.ErrInvalidRecord.
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
		boolToInt(record.IsActive),
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

	record, err := c.scanRecord(row)
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

	return c.collectRecords(rows)
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

	return c.collectRecords(rows)
}

// Update applies a partial mutation to a record.
//
// Only fields named by the mutation are written. The access count delta is
// applied inside the database so concurrent touches never lose increments.
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

	result, err := c.db.ExecContext(ctx, query, boolToInt(active), id)
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

// selectColumns is the column list shared by all SELECT statements.
const selectColumns = `id, user_id, type, content, summary, keywords, embedding,
	importance, confidence, source, session_id, message_id, created_at,
	last_accessed_at, access_count, decay_factor, is_active`

// collectRecords drains rows into a slice of records.
func (c *Client) collectRecords(rows *sql.Rows) ([]*storage.Record, error) {
	var records []*storage.Record
	for rows.Next() {
		record, err := c.scanRecord(rows)
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
func (c *Client) scanRecord(scanner interface{}) (*storage.Record, error) {
	var record storage.Record
	var summary, keywordsStr, source, sessionID, messageID sql.NullString
	var embeddingStr string
	var lastAccessedAt sql.NullTime
	var isActive int

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
		&record.CreatedAt,
		&lastAccessedAt,
		&record.AccessCount,
		&record.DecayFactor,
		&isActive,
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
	record.IsActive = isActive != 0
	if lastAccessedAt.Valid {
		record.LastAccessedAt = &lastAccessedAt.Time
	}

	return &record, nil
}

// boolToInt converts a bool to the 0/1 representation SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
