package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/handrelay/internal/session"
)

// Session is a catalog entry for one session file.
type Session struct {
	ID          string    `json:"id"`
	ActionName  string    `json:"action_name"`
	FPS         float64   `json:"fps"`
	FrameCount  int       `json:"frame_count"`
	ValidFrames int       `json:"valid_frames"`
	Path        string    `json:"path"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionRepository provides CRUD operations for catalog entries.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, action_name, fps, frame_count, valid_frames, path, created_at`

// Create inserts a new entry. An empty ID is filled with a fresh UUID and a zero
// CreatedAt with the current time.
func (r *SessionRepository) Create(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.ActionName, s.FPS, s.FrameCount, s.ValidFrames, s.Path, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.Path, err)
	}
	return nil
}

// Register catalogs the session s stored at path. The path is made absolute so the
// same file is never registered twice under different spellings.
func (r *SessionRepository) Register(path string, s *session.Session) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	entry := &Session{
		ActionName:  s.ActionName,
		FPS:         s.FPS,
		FrameCount:  s.Len(),
		ValidFrames: s.ValidFrames(),
		Path:        abs,
	}
	if info, err := os.Stat(abs); err == nil {
		entry.CreatedAt = info.ModTime()
	}

	if err := r.Create(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetByID retrieves an entry by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	return r.getOne(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
}

// GetByPath retrieves an entry by its file path.
func (r *SessionRepository) GetByPath(path string) (*Session, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return r.getOne(`SELECT `+sessionColumns+` FROM sessions WHERE path = ?`, abs)
}

func (r *SessionRepository) getOne(query string, arg any) (*Session, error) {
	s := &Session{}
	err := r.db.QueryRow(query, arg).Scan(
		&s.ID, &s.ActionName, &s.FPS, &s.FrameCount, &s.ValidFrames, &s.Path, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns all entries, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, action_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(&s.ID, &s.ActionName, &s.FPS, &s.FrameCount, &s.ValidFrames, &s.Path, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Delete removes an entry by its ID. The session file is left alone.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SyncResult reports what Sync changed.
type SyncResult struct {
	Added   int
	Removed int
	// Rejected counts files that could not be loaded as sessions.
	Rejected int
}

// Sync reconciles the catalog with the *.json files in dir: files not yet cataloged are
// registered and entries whose file no longer exists are removed. Files that fail to
// load are logged and skipped.
func (r *SessionRepository) Sync(dir string) (SyncResult, error) {
	var res SyncResult

	existing, err := r.List()
	if err != nil {
		return res, err
	}
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		if _, err := os.Stat(s.Path); errors.Is(err, os.ErrNotExist) {
			if err := r.Delete(s.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return res, err
			}
			res.Removed++
			continue
		}
		known[s.Path] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return res, nil
		}
		return res, err
	}

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path, err := filepath.Abs(filepath.Join(dir, e.Name()))
		if err != nil {
			return res, err
		}
		if known[path] {
			continue
		}

		s, err := session.LoadFile(path)
		if err != nil {
			slog.Warn("skipping session file", "path", path, "error", err)
			res.Rejected++
			continue
		}
		if _, err := r.Register(path, s); err != nil {
			return res, err
		}
		res.Added++
	}

	return res, nil
}
