// Package previews keeps short-lived copies of uploaded images so the chat
// page can show them while the upload is being analysed.
package previews

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopassist/internal/models"
	"shopassist/internal/storage"
)

const (
	// URLPrefix is the path the web layer serves previews under.
	URLPrefix = "/previews/"

	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 10 * time.Minute

	statusActive = "active"
)

var ErrNotFound = errors.New("preview not found")

// Preview describes one stored upload.
type Preview struct {
	ID        string
	SessionID string
	FileName  string
	Path      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Store struct {
	db     *sql.DB
	driver string
	dir    string
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(db *sql.DB, driver, dir string, ttl time.Duration) (*Store, error) {
	if db == nil {
		return nil, errors.New("previews: nil database")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Store{
		db:     db,
		driver: storage.Driver(driver),
		dir:    dir,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (s *Store) q(query string) string {
	return storage.Rebind(s.driver, query)
}

// Create writes the upload to disk and returns the URL it is served at.
func (s *Store) Create(ctx context.Context, sessionID string, up models.Upload) (string, error) {
	if len(up.Data) == 0 {
		return "", errors.New("previews: empty upload")
	}
	mimeType := up.ContentType
	if mimeType == "" {
		mimeType = http.DetectContentType(up.Data)
	}
	id := uuid.NewString()
	sessionDir := filepath.Join(s.dir, safeSegment(sessionID))
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, id+filepath.Ext(filepath.Base(up.Filename)))
	if err := os.WriteFile(path, up.Data, 0o644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}

	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO previews (id, session_id, file_name, stored_path, mime_type, size, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id, sessionID, filepath.Base(up.Filename), path, mimeType, len(up.Data), statusActive, now, now.Add(s.ttl))
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("insert preview: %w", err)
	}
	return URLPrefix + id, nil
}

// Get looks up an active, unexpired preview.
func (s *Store) Get(ctx context.Context, id string) (*Preview, error) {
	var p Preview
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, session_id, file_name, stored_path, mime_type, size, created_at, expires_at
		FROM previews WHERE id = ? AND status = ?`), id, statusActive).
		Scan(&p.ID, &p.SessionID, &p.FileName, &p.Path, &p.MimeType, &p.Size, &p.CreatedAt, &p.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query preview: %w", err)
	}
	if !p.ExpiresAt.After(s.now()) {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Revoke removes the preview behind url. Unknown urls are ignored.
func (s *Store) Revoke(ctx context.Context, url string) error {
	id, ok := IDFromURL(url)
	if !ok {
		return nil
	}
	var path string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT stored_path FROM previews WHERE id = ?`), id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("query preview: %w", err)
	}
	return s.remove(ctx, id, path)
}

func (s *Store) remove(ctx context.Context, id, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preview file: %w", err)
	}
	// prune the session directory once it is empty
	_ = os.Remove(filepath.Dir(path))
	if _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM previews WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete preview record: %w", err)
	}
	return nil
}

// StartCleaner removes expired previews every interval until ctx is done.
func (s *Store) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Store) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.cleanupExpired(ctx); err != nil {
				log.Printf("cleanup previews error: %v", err)
			}
		}
	}
}

func (s *Store) cleanupExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, stored_path FROM previews
		WHERE expires_at <= ?`), s.now().UTC())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type fileRow struct {
		id   string
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return 0, err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	removed := 0
	for _, f := range files {
		if err := s.remove(ctx, f.id, f.path); err != nil {
			log.Printf("remove preview %s failed: %v", f.id, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// IDFromURL extracts the preview id from a URL produced by Create.
func IDFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, URLPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, URLPrefix)
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func safeSegment(s string) string {
	if s == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
