// User file: a JSON-backed user record store for the Basic/Form/Digest
// schemes, covering small deployments that don't want an external
// identity provider.
package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// UserRecord is one entry of a user file.
type UserRecord struct {
	Username          string         `json:"username"`
	Name              string         `json:"name,omitempty"`
	Email             string         `json:"email,omitempty"`
	Password          string         `json:"password"` // hex SHA-256 or HMAC-SHA256, see hashPassword
	PlaintextPassword string         `json:"-"`         // set by Add, never saved to or loaded from the file; Digest needs it for HA1
	Groups            []string       `json:"groups,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// UserFileStore holds the parsed records from a user file, keyed by
// username, guarded for concurrent Verify/Lookup calls against a
// reloadable backing file.
type UserFileStore struct {
	mu      sync.RWMutex
	records map[string]*UserRecord
	secret  []byte
}

// NewUserFileStore creates an empty store. A non-empty secret switches
// password hashing from plain SHA-256 to HMAC-SHA256 keyed on secret; it
// must stay stable across restarts for existing hashes to keep
// validating.
func NewUserFileStore(secret []byte) *UserFileStore {
	return &UserFileStore{records: make(map[string]*UserRecord), secret: secret}
}

// LoadUserFile reads a JSON array of UserRecord from path. Passwords in
// the file are expected already hashed (hashPassword's output); a
// deployment seeds the file once with a provisioning tool rather than
// storing plaintext on disk.
func (s *UserFileStore) LoadUserFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewError(KindConfiguration, "userfile.Load", err)
	}
	var records []*UserRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return NewError(KindConfiguration, "userfile.Load", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*UserRecord, len(records))
	for _, r := range records {
		s.records[r.Username] = r
	}
	return nil
}

// hashPassword computes the digest this store compares against,
// hex-encoded: plain SHA-256 of password when no secret is configured,
// HMAC-SHA256 keyed on secret otherwise.
func (s *UserFileStore) hashPassword(password string) string {
	if len(s.secret) == 0 {
		sum := sha256.Sum256([]byte(password))
		return fmt.Sprintf("%x", sum)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(password))
	return fmt.Sprintf("%x", mac.Sum(nil))
}

// Add inserts or replaces a record, hashing plaintext before storing it.
func (s *UserFileStore) Add(username, plaintext, name, email string, groups []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[username] = &UserRecord{
		Username: username, Name: name, Email: email,
		Password: s.hashPassword(plaintext), PlaintextPassword: plaintext, Groups: groups,
	}
}

// Verify checks username/password against the store's hash, in constant
// time, returning the record on success.
func (s *UserFileStore) Verify(username, password string) (*UserRecord, bool) {
	s.mu.RLock()
	record, ok := s.records[username]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	got := s.hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(got), []byte(record.Password)) != 1 {
		return nil, false
	}
	return record, true
}

// Lookup returns a record by username without checking a password, used
// by Digest (which verifies via HA1/HA2 in its PostValidator instead).
func (s *UserFileStore) Lookup(username string) (*UserRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[username]
	return record, ok
}

// Save writes the current records back to path, for tooling that
// provisions users programmatically rather than hand-editing the file.
func (s *UserFileStore) Save(path string) error {
	s.mu.RLock()
	records := make([]*UserRecord, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, r)
	}
	s.mu.RUnlock()
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
