package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"HealthIntake/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	id              TEXT PRIMARY KEY,
	category        TEXT NOT NULL,
	language        TEXT NOT NULL,
	form_data       TEXT NOT NULL,
	additional_data TEXT NOT NULL,
	contact_data    TEXT NOT NULL,
	telegram_key    TEXT NOT NULL DEFAULT '',
	instagram_key   TEXT NOT NULL DEFAULT '',
	phone_key       TEXT NOT NULL DEFAULT '',
	rendered        TEXT NOT NULL,
	message_ids     TEXT NOT NULL DEFAULT '[]',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_telegram ON submissions(telegram_key);
CREATE INDEX IF NOT EXISTS idx_submissions_instagram ON submissions(instagram_key);
CREATE INDEX IF NOT EXISTS idx_submissions_phone ON submissions(phone_key);
CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
`

const sqliteColumns = `id, category, language, form_data, additional_data, contact_data, rendered, message_ids, created_at, updated_at`

// SQLiteStore persists submissions in a SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use ":memory:" for tests.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening sqlite database: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error configuring sqlite: %w", err)
	}
	for _, stmt := range strings.Split(sqliteSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("error migrating sqlite schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, sub model.Submission) error {
	formData, err := json.Marshal(sub.Answers)
	if err != nil {
		return fmt.Errorf("error encoding answers: %w", err)
	}
	additional, err := json.Marshal(sub.Additional)
	if err != nil {
		return fmt.Errorf("error encoding additional data: %w", err)
	}
	contact, err := json.Marshal(sub.Contact)
	if err != nil {
		return fmt.Errorf("error encoding contact: %w", err)
	}
	messageIDs, err := encodeMessageIDs(sub.MessageIDs)
	if err != nil {
		return err
	}
	key := sub.Contact.Key()

	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions
		(id, category, language, form_data, additional_data, contact_data, telegram_key, instagram_key, phone_key, rendered, message_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, string(sub.Category), string(sub.Language), string(formData), string(additional), string(contact),
		key.Telegram, key.Instagram, key.Phone, sub.Rendered, messageIDs,
		sub.CreatedAt.UnixNano(), sub.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("error creating questionnaire: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading questionnaire: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) GetMany(ctx context.Context, ids []string) ([]model.Submission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM submissions WHERE id IN (`+placeholders+`)`, args...)
}

func (s *SQLiteStore) SetMessageIDs(ctx context.Context, id string, messageIDs []int) error {
	encoded, err := encodeMessageIDs(messageIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET message_ids = ?, updated_at = ? WHERE id = ?`,
		encoded, nowFunc().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("error updating message ids: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("error deleting questionnaire: %w", err)
	}
	return expectOneRow(res)
}

func (s *SQLiteStore) FindByContact(ctx context.Context, q model.ContactKey) ([]model.Submission, error) {
	if q.IsEmpty() {
		return nil, nil
	}
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM submissions
		WHERE (? <> '' AND telegram_key = ?)
		   OR (? <> '' AND instagram_key = ?)
		   OR (? <> '' AND phone_key = ?)
		ORDER BY created_at DESC`,
		q.Telegram, q.Telegram, q.Instagram, q.Instagram, q.Phone, q.Phone)
}

func (s *SQLiteStore) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM submissions WHERE created_at < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("error purging questionnaires: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting questionnaires: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying questionnaires: %w", err)
	}
	defer rows.Close()

	var out []model.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning questionnaire: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*model.Submission, error) {
	var (
		sub                                     model.Submission
		category, language                      string
		formData, additional, contact, messages string
		created, updated                        int64
	)
	if err := row.Scan(&sub.ID, &category, &language, &formData, &additional, &contact,
		&sub.Rendered, &messages, &created, &updated); err != nil {
		return nil, err
	}
	sub.Category = model.Category(category)
	sub.Language = model.Language(language)
	if err := json.Unmarshal([]byte(formData), &sub.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(additional), &sub.Additional); err != nil {
		return nil, fmt.Errorf("decode additional data: %w", err)
	}
	if err := json.Unmarshal([]byte(contact), &sub.Contact); err != nil {
		return nil, fmt.Errorf("decode contact: %w", err)
	}
	if err := json.Unmarshal([]byte(messages), &sub.MessageIDs); err != nil {
		return nil, fmt.Errorf("decode message ids: %w", err)
	}
	if len(sub.MessageIDs) == 0 {
		sub.MessageIDs = nil
	}
	sub.CreatedAt = time.Unix(0, created).UTC()
	sub.UpdatedAt = time.Unix(0, updated).UTC()
	return &sub, nil
}

func encodeMessageIDs(ids []int) (string, error) {
	if ids == nil {
		ids = []int{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("error encoding message ids: %w", err)
	}
	return string(b), nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrSubmissionNotFound
	}
	return nil
}
