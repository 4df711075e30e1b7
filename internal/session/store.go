package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dom/product-console/internal/domain"
)

// Keys under which a session is persisted. All three are written together and
// a session only exists when all three are present and parse.
const (
	KeyToken  = "token"
	KeyUser   = "user"
	KeyExpiry = "sessionExpiry"
)

type Session struct {
	Token  string
	User   domain.PublicUser
	Expiry time.Time
}

// Store persists at most one session. Load returns nil, nil when logged out.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

var errIncomplete = errors.New("session: incomplete or corrupt entry set")

func encode(s *Session) (map[string]string, error) {
	user, err := json.Marshal(s.User)
	if err != nil {
		return nil, fmt.Errorf("session: encode user: %w", err)
	}
	return map[string]string{
		KeyToken:  s.Token,
		KeyUser:   string(user),
		KeyExpiry: strconv.FormatInt(s.Expiry.UnixMilli(), 10),
	}, nil
}

func decode(entries map[string]string) (*Session, error) {
	token, user, expiry := entries[KeyToken], entries[KeyUser], entries[KeyExpiry]
	if token == "" || user == "" || expiry == "" {
		return nil, errIncomplete
	}
	ms, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return nil, errIncomplete
	}
	s := &Session{Token: token, Expiry: time.UnixMilli(ms)}
	if err := json.Unmarshal([]byte(user), &s.User); err != nil {
		return nil, errIncomplete
	}
	return s, nil
}

// MemoryStore keeps the entries in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]string{}}
}

func (m *MemoryStore) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return nil, nil
	}
	s, err := decode(m.entries)
	if err != nil {
		m.entries = map[string]string{}
		return nil, nil
	}
	return s, nil
}

func (m *MemoryStore) Save(s *Session) error {
	entries, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.entries = map[string]string{}
	m.mu.Unlock()
	return nil
}

// Set writes a single raw entry. It exists to model a partially written store.
func (m *MemoryStore) Set(key, value string) {
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
}

// Entries returns a copy of the raw entries.
func (m *MemoryStore) Entries() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// FileStore keeps the entries as a JSON object in a single 0600 file. Saves go
// through a temp file and rename so readers never see a partial set.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", f.path, err)
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, f.clearLocked()
	}
	s, err := decode(entries)
	if err != nil {
		return nil, f.clearLocked()
	}
	return s, nil
}

func (f *FileStore) Save(s *Session) error {
	entries, err := encode(s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearLocked()
}

func (f *FileStore) clearLocked() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove %s: %w", f.path, err)
	}
	return nil
}
