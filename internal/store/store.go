// Package store persists channel folders and scanned channel messages over
// database/sql. SQLite is the default backend; MySQL and Postgres work with
// the same schema for shared deployments.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/polittech/stratagem/internal/log"
	_ "github.com/polittech/stratagem/internal/pkg/sqlite"
)

var (
	// ErrNotFound marks a folder or channel id that does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateFolder marks a folder name that is already taken.
	ErrDuplicateFolder = errors.New("store: folder already exists")
)

// defaultMessageLimit bounds the recent-message window when the caller gives
// no limit.
const defaultMessageLimit = 100

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

type Config struct {
	// Dialect selects the backend: sqlite (default), mysql or postgres.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`

	// DSN is the driver connection string. MySQL needs parseTime=true for
	// the timestamp columns.
	DSN string `conf:"dsn" yaml:"dsn" json:"dsn"`
}

func (c Config) withDefaults() Config {
	if c.Dialect == "" {
		c.Dialect = string(DialectSQLite)
	}

	if c.DSN == "" {
		c.DSN = "stratagem.db"
	}

	return c
}

// Folder groups tracked channels.
type Folder struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	ChannelCount int       `json:"channel_count"`
}

// Channel is one tracked channel inside a folder.
type Channel struct {
	ID         int64      `json:"id"`
	FolderID   int64      `json:"folder_id"`
	TelegramID int64      `json:"telegram_id"`
	Username   string     `json:"username"`
	Title      string     `json:"title"`
	CreatedAt  time.Time  `json:"created_at"`
	ScannedAt  *time.Time `json:"scanned_at,omitempty"`

	// FolderName is filled by AllChannels only.
	FolderName string `json:"folder_name,omitempty"`
}

// Message is one scanned channel post.
type Message struct {
	ID        int64     `json:"id"`
	ChannelID int64     `json:"channel_id"`
	MessageID int64     `json:"message_id"`
	Text      string    `json:"text"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Store wraps the SQL database with the folder, channel and message
// operations the bot and the rescan worker need.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to the configured database, verifies the connection and
// creates missing tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	dialect, driver, err := resolveDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite serializes writers anyway; a single pooled connection also
		// keeps private in-memory databases alive across calls.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, dialect: dialect, now: time.Now}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	log.Debug(ctx, "store opened", log.String("dialect", string(dialect)))

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func resolveDialect(name string) (Dialect, string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, "sqlite3", nil
	case "mysql", "tidb":
		return DialectMySQL, "mysql", nil
	case "postgres", "postgresql", "pg", "pgx":
		return DialectPostgres, "pgx", nil
	default:
		return "", "", fmt.Errorf("unsupported dialect: %s", name)
	}
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

func schemaStatements(dialect Dialect) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"

	switch dialect {
	case DialectMySQL:
		pk = "BIGINT PRIMARY KEY AUTO_INCREMENT"
	case DialectPostgres:
		pk = "BIGSERIAL PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS folders (
			id %s,
			name VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS channels (
			id %s,
			folder_id BIGINT NOT NULL,
			telegram_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL,
			title TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_scanned_at TIMESTAMP NULL,
			FOREIGN KEY (folder_id) REFERENCES folders (id) ON DELETE CASCADE
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS messages (
			id %s,
			channel_id BIGINT NOT NULL,
			message_id BIGINT NOT NULL,
			text TEXT NOT NULL,
			posted_at TIMESTAMP NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (channel_id, message_id),
			FOREIGN KEY (channel_id) REFERENCES channels (id) ON DELETE CASCADE
		)`, pk),
	}
}

// rebind rewrites ? placeholders to the $n form Postgres expects. The other
// dialects take the query as written.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// CreateFolder adds a named folder. The name is unique across the store.
func (s *Store) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("empty folder name")
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO folders (name) VALUES (?)`), name)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateFolder, name)
		}

		return fmt.Errorf("create folder: %w", err)
	}

	return nil
}

// DeleteFolder removes a folder together with its channels and their
// messages.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM folders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete folder: %w", err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: folder %d", ErrNotFound, id)
	}

	return nil
}

// Folders lists all folders with their channel counts, oldest first.
func (s *Store) Folders(ctx context.Context) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.created_at, COUNT(c.id)
		FROM folders f
		LEFT JOIN channels c ON f.id = c.folder_id
		GROUP BY f.id, f.name, f.created_at
		ORDER BY f.id`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder

	for rows.Next() {
		var f Folder

		if err := rows.Scan(&f.ID, &f.Name, &f.CreatedAt, &f.ChannelCount); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}

		folders = append(folders, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}

	return folders, nil
}

// Folder fetches one folder by id.
func (s *Store) Folder(ctx context.Context, id int64) (*Folder, error) {
	var f Folder

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT f.id, f.name, f.created_at, COUNT(c.id)
		FROM folders f
		LEFT JOIN channels c ON f.id = c.folder_id
		WHERE f.id = ?
		GROUP BY f.id, f.name, f.created_at`),
		id).Scan(&f.ID, &f.Name, &f.CreatedAt, &f.ChannelCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: folder %d", ErrNotFound, id)
		}

		return nil, fmt.Errorf("get folder: %w", err)
	}

	return &f, nil
}

// AddChannel attaches a channel to a folder.
func (s *Store) AddChannel(ctx context.Context, folderID, telegramID int64, username, title string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO channels (folder_id, telegram_id, username, title)
		VALUES (?, ?, ?, ?)`),
		folderID, telegramID, username, title)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: folder %d", ErrNotFound, folderID)
		}

		return fmt.Errorf("add channel: %w", err)
	}

	return nil
}

// Channel fetches one channel by id.
func (s *Store) Channel(ctx context.Context, id int64) (*Channel, error) {
	var (
		c       Channel
		scanned sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, folder_id, telegram_id, username, title, created_at, last_scanned_at
		FROM channels
		WHERE id = ?`),
		id).Scan(&c.ID, &c.FolderID, &c.TelegramID, &c.Username, &c.Title, &c.CreatedAt, &scanned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: channel %d", ErrNotFound, id)
		}

		return nil, fmt.Errorf("get channel: %w", err)
	}

	if scanned.Valid {
		c.ScannedAt = &scanned.Time
	}

	return &c, nil
}

// RemoveChannel drops a channel and its messages.
func (s *Store) RemoveChannel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM channels WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("remove channel: %w", err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: channel %d", ErrNotFound, id)
	}

	return nil
}

// Channels lists the channels of one folder.
func (s *Store) Channels(ctx context.Context, folderID int64) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, folder_id, telegram_id, username, title, created_at, last_scanned_at
		FROM channels
		WHERE folder_id = ?
		ORDER BY id`),
		folderID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows, false)
}

// AllChannels lists every tracked channel with its folder name.
func (s *Store) AllChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.folder_id, c.telegram_id, c.username, c.title, c.created_at, c.last_scanned_at, f.name
		FROM channels c
		JOIN folders f ON c.folder_id = f.id
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	return scanChannels(rows, true)
}

func scanChannels(rows *sql.Rows, withFolder bool) ([]Channel, error) {
	var channels []Channel

	for rows.Next() {
		var (
			c       Channel
			scanned sql.NullTime
		)

		dest := []any{&c.ID, &c.FolderID, &c.TelegramID, &c.Username, &c.Title, &c.CreatedAt, &scanned}
		if withFolder {
			dest = append(dest, &c.FolderName)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}

		if scanned.Valid {
			c.ScannedAt = &scanned.Time
		}

		channels = append(channels, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}

	return channels, nil
}

// SaveMessages upserts a batch of scanned messages and stamps the channel's
// scan time in the same transaction. Rescanning the same window updates the
// stored texts instead of duplicating rows.
func (s *Store) SaveMessages(ctx context.Context, channelID int64, messages []Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(s.upsertMessageQuery()))
	if err != nil {
		return fmt.Errorf("save messages: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		if _, err := stmt.ExecContext(ctx, channelID, msg.MessageID, msg.Text, msg.PostedAt.UTC()); err != nil {
			return fmt.Errorf("save message %d: %w", msg.MessageID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE channels SET last_scanned_at = ? WHERE id = ?`),
		s.now().UTC(), channelID); err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save messages: %w", err)
	}

	return nil
}

func (s *Store) upsertMessageQuery() string {
	if s.dialect == DialectMySQL {
		return `INSERT INTO messages (channel_id, message_id, text, posted_at)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE text = VALUES(text), posted_at = VALUES(posted_at)`
	}

	return `INSERT INTO messages (channel_id, message_id, text, posted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id, message_id) DO UPDATE SET
			text = excluded.text,
			posted_at = excluded.posted_at`
}

// Messages returns the channel's most recent messages, newest first.
func (s *Store) Messages(ctx context.Context, channelID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, channel_id, message_id, text, posted_at, created_at
		FROM messages
		WHERE channel_id = ?
		ORDER BY posted_at DESC
		LIMIT ?`),
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message

	for rows.Next() {
		var (
			m      Message
			posted sql.NullTime
		)

		if err := rows.Scan(&m.ID, &m.ChannelID, &m.MessageID, &m.Text, &posted, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		if posted.Valid {
			m.PostedAt = posted.Time
		}

		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return messages, nil
}

// TouchScanned stamps the channel's scan time without touching messages,
// for rescans that found nothing new.
func (s *Store) TouchScanned(ctx context.Context, channelID int64) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE channels SET last_scanned_at = ? WHERE id = ?`),
		s.now().UTC(), channelID)
	if err != nil {
		return fmt.Errorf("touch channel: %w", err)
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: channel %d", ErrNotFound, channelID)
	}

	return nil
}

// isDuplicate spots unique violations across the supported drivers without
// importing their error types.
func isDuplicate(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}

func isForeignKeyViolation(err error) bool {
	msg := err.Error()

	return strings.Contains(msg, "FOREIGN KEY constraint failed") ||
		strings.Contains(msg, "foreign key constraint") ||
		strings.Contains(msg, "violates foreign key")
}
