package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"menagent/pkg/models"

	_ "modernc.org/sqlite"
)

// Store persists the agent's session state: the server-issued token, the
// server URL, the employee identity, the connect flag and the last settings
// snapshot received. Backed by a small sqlite key-value table so state
// survives restarts.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Keys used in the state table.
const (
	keyToken     = "token"
	keyServerURL = "server_url"
	keyEmployee  = "employee"
	keyConnected = "is_connect"
	keySettings  = "settings"
)

// NewStore opens (creating if necessary) the state database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "menagent.db")

	// The modernc.org/sqlite driver registers itself as "sqlite".
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agent_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRow(`SELECT value FROM agent_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		// Read failures are treated as absent; callers fall back to defaults.
		return "", false
	}
	return value, true
}

func (s *Store) delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM agent_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SetToken stores the server-issued session token.
func (s *Store) SetToken(token string) error {
	return s.set(keyToken, token)
}

// Token returns the stored session token, or "" when not logged in.
func (s *Store) Token() string {
	v, _ := s.get(keyToken)
	return v
}

// ClearToken removes the stored session token. Called on logout and on an
// unauthorized response from any endpoint.
func (s *Store) ClearToken() error {
	return s.delete(keyToken)
}

// SetServerURL stores the control server base URL.
func (s *Store) SetServerURL(url string) error {
	return s.set(keyServerURL, url)
}

// ServerURL returns the control server base URL.
func (s *Store) ServerURL() string {
	v, _ := s.get(keyServerURL)
	return v
}

// SetEmployee stores the employee identity returned at login.
func (s *Store) SetEmployee(e models.Employee) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal employee: %w", err)
	}
	return s.set(keyEmployee, string(data))
}

// Employee returns the stored employee identity, if any.
func (s *Store) Employee() (models.Employee, bool) {
	v, ok := s.get(keyEmployee)
	if !ok {
		return models.Employee{}, false
	}
	var e models.Employee
	if err := json.Unmarshal([]byte(v), &e); err != nil {
		return models.Employee{}, false
	}
	return e, true
}

// SetConnected stores whether the agent considers itself connected.
func (s *Store) SetConnected(connected bool) error {
	if connected {
		return s.set(keyConnected, "1")
	}
	return s.set(keyConnected, "0")
}

// Connected reports whether the agent considers itself connected.
func (s *Store) Connected() bool {
	v, _ := s.get(keyConnected)
	return v == "1"
}

// SetSettings caches the last settings snapshot received from the server.
func (s *Store) SetSettings(settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return s.set(keySettings, string(data))
}

// Settings returns the cached settings snapshot, falling back to defaults
// when nothing has been received yet.
func (s *Store) Settings() models.Settings {
	v, ok := s.get(keySettings)
	if !ok {
		return models.DefaultSettings()
	}
	var settings models.Settings
	if err := json.Unmarshal([]byte(v), &settings); err != nil {
		return models.DefaultSettings()
	}
	return settings
}
