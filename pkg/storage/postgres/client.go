// Package postgres provides a PostgreSQL implementation of the memory store.
//
// Embeddings are stored in a pgvector column so the database can index them;
// scoring still happens in the retrieval engine, which keeps ranking behavior
// identical across backends.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/engram-ai/engram-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL with pgvector.
type Client struct {
	db         *sql.DB
	tableName  string
	dimensions int
}

// Config contains PostgreSQL configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	TableName  string
	Dimensions int
	SSLMode    string
}

// NewClient creates a new PostgreSQL store client.
//
// The pgvector extension is created if missing, along with the memories table
// and its (user_id, is_active) index.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.Dimensions,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the pgvector extension and table structure.
func (c *Client) initTables(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			keywords JSONB,
			embedding vector(%d) NOT NULL,
			importance FLOAT DEFAULT 0.5,
			confidence FLOAT DEFAULT 1.0,
			source VARCHAR(32),
			session_id VARCHAR(255),
			message_id VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at TIMESTAMP,
			access_count BIGINT DEFAULT 0,
			decay_factor FLOAT DEFAULT 1.0,
			is_active BOOLEAN DEFAULT TRUE
		)
	`, c.tableName, c.dimensions)

	_, err = c.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_user_active ON %s(user_id, is_active)
	`, c.tableName, c.tableName)
	_, err = c.db.ExecContext(ctx, indexQuery)
	if err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
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

	keywordsJSON, err := json.Marshal(record.Keywords)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, user_id, type, content, summary, keywords, embedding, importance,
		 confidence, source, session_id, message_id, created_at, access_count,
		 decay_factor, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.Type,
		record.Content,
		record.Summary,
		string(keywordsJSON),
		toVector(record.Embedding),
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", selectColumns, c.tableName)

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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = $1 AND is_active = TRUE",
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
	query := fmt.Sprintf("SELECT %s FROM %s WHERE is_active = TRUE",
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
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if mut.Importance != nil {
		sets = append(sets, "importance = "+arg(*mut.Importance))
	}
	if mut.DecayFactor != nil {
		sets = append(sets, "decay_factor = "+arg(*mut.DecayFactor))
	}
	if mut.Summary != nil {
		sets = append(sets, "summary = "+arg(*mut.Summary))
	}
	if mut.LastAccessedAt != nil {
		sets = append(sets, "last_accessed_at = "+arg(*mut.LastAccessedAt))
	}
	if mut.AccessCountDelta != 0 {
		sets = append(sets, "access_count = access_count + "+arg(mut.AccessCountDelta))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		c.tableName, strings.Join(sets, ", "), arg(id))

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
	query := fmt.Sprintf("UPDATE %s SET is_active = $1 WHERE id = $2", c.tableName)

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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.tableName)

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
	var embedding pgvector.Vector
	var lastAccessedAt sql.NullTime

	dest := []interface{}{
		&record.ID,
		&record.UserID,
		&record.Type,
		&record.Content,
		&summary,
		&keywordsStr,
		&embedding,
		&record.Importance,
		&record.Confidence,
		&source,
		&sessionID,
		&messageID,
		&record.CreatedAt,
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

	record.Embedding = fromVector(embedding)
	if keywordsStr.Valid && keywordsStr.String != "" {
		if err := json.Unmarshal([]byte(keywordsStr.String), &record.Keywords); err != nil {
			return nil, fmt.Errorf("parse keywords: %w", err)
		}
	}

	record.Summary = summary.String
	record.Source = source.String
	record.SessionID = sessionID.String
	record.MessageID = messageID.String
	if lastAccessedAt.Valid {
		record.LastAccessedAt = &lastAccessedAt.Time
	}

	return &record, nil
}

// toVector converts a float64 embedding to the pgvector wire type.
func toVector(embedding []float64) pgvector.Vector {
	v := make([]float32, len(embedding))
	for i, x := range embedding {
		v[i] = float32(x)
	}
	return pgvector.NewVector(v)
}

// fromVector converts a pgvector value back to a float64 embedding.
func fromVector(v pgvector.Vector) []float64 {
	slice := v.Slice()
	embedding := make([]float64, len(slice))
	for i, x := range slice {
		embedding[i] = float64(x)
	}
	return embedding
}
