package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const saltMetaKey = "cookie_salt"

// CookieStore persists session cookies between CLI invocations, scoped by
// API base URL. Values are sealed when a passphrase is configured.
type CookieStore struct {
	db     *DB
	sealer *Sealer
	now    func() time.Time
}

// NewCookieStore opens a cookie store on db. A nil config or empty
// passphrase stores values in plain text.
func NewCookieStore(ctx context.Context, db *DB, enc *EncryptionConfig) (*CookieStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	s := &CookieStore{db: db, now: time.Now}

	if enc != nil && enc.Passphrase != "" {
		salt, err := s.salt(ctx)
		if err != nil {
			return nil, err
		}
		sealer, err := NewSealer(enc, salt)
		if err != nil {
			return nil, err
		}
		s.sealer = sealer
	}
	return s, nil
}

// Encrypted reports whether values are sealed at rest.
func (s *CookieStore) Encrypted() bool {
	return s.sealer != nil
}

func (s *CookieStore) salt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, saltMetaKey).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt, err = newSalt()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Conn().ExecContext(ctx,
		`INSERT OR IGNORE INTO store_meta (key, value) VALUES (?, ?)`, saltMetaKey, salt); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}
	// Another process may have won the insert.
	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, saltMetaKey).Scan(&salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}
	return salt, nil
}

// Save replaces every cookie stored for baseURL.
func (s *CookieStore) Save(ctx context.Context, baseURL string, cookies []*http.Cookie, expires time.Time) error {
	now := s.now().Unix()
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_cookies WHERE base_url = ?`, baseURL); err != nil {
			return fmt.Errorf("failed to clear cookies: %w", err)
		}

		for _, c := range cookies {
			if c == nil || c.Name == "" {
				continue
			}
			value := []byte(c.Value)
			encrypted := 0
			if s.sealer != nil {
				var err error
				if value, err = s.sealer.Seal(value); err != nil {
					return err
				}
				encrypted = 1
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO session_cookies (base_url, name, value, encrypted, expires_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				baseURL, c.Name, value, encrypted, expires.Unix(), now,
			); err != nil {
				return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// Load returns the unexpired cookies stored for baseURL.
func (s *CookieStore) Load(ctx context.Context, baseURL string) ([]*http.Cookie, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT name, value, encrypted FROM session_cookies
		WHERE base_url = ? AND expires_at > ?
		ORDER BY name`,
		baseURL, s.now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cookies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cookies []*http.Cookie
	for rows.Next() {
		var (
			name      string
			value     []byte
			encrypted bool
		)
		if err := rows.Scan(&name, &value, &encrypted); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if encrypted {
			if s.sealer == nil {
				return nil, fmt.Errorf("%w: cookie %s is encrypted but no passphrase is set", ErrDecrypt, name)
			}
			if value, err = s.sealer.Open(value); err != nil {
				return nil, err
			}
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: string(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cookies: %w", err)
	}
	return cookies, nil
}

// Clear removes every cookie stored for baseURL.
func (s *CookieStore) Clear(ctx context.Context, baseURL string) error {
	if _, err := s.db.Conn().ExecContext(ctx, `DELETE FROM session_cookies WHERE base_url = ?`, baseURL); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

// Prune deletes expired rows for every base URL and returns how many went.
func (s *CookieStore) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM session_cookies WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cookies: %w", err)
	}
	return res.RowsAffected()
}
