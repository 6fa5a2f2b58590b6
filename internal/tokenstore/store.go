package tokenstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/teemow/agentcourier/internal/consent"
	"github.com/teemow/agentcourier/internal/logging"
)

// Store persists consent tokens under a directory, one JSON file per user.
// Files are written atomically so a crash never leaves a truncated store.
type Store struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
}

// userFile is the on-disk shape of one user's consent tokens.
type userFile struct {
	UserID string                           `json:"user_id"`
	Tokens map[consent.Scope]persistedToken `json:"tokens"`
}

type persistedToken struct {
	Value     []byte    `json:"value"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("token store directory must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// DefaultDir returns the per-user cache location for persisted consent tokens.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentcourier", "consent")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "agentcourier", "consent")
	}
	return filepath.Join(home, ".cache", "agentcourier", "consent")
}

// Save writes or replaces the token for its owner and scope.
func (s *Store) Save(token consent.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readUser(token.OwnerUserID)
	if err != nil {
		return err
	}
	if file.Tokens == nil {
		file.Tokens = make(map[consent.Scope]persistedToken)
	}
	file.UserID = token.OwnerUserID
	file.Tokens[token.Scope] = persistedToken{Value: token.Value, ExpiresAt: token.ExpiresAt}

	return s.writeUser(file)
}

// Delete removes the token for one scope. Deleting the last scope removes the
// user's file. Missing tokens are not an error.
func (s *Store) Delete(userID string, scope consent.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readUser(userID)
	if err != nil {
		return err
	}
	if _, ok := file.Tokens[scope]; !ok {
		return nil
	}
	delete(file.Tokens, scope)

	if len(file.Tokens) == 0 {
		return s.removeUser(userID)
	}
	return s.writeUser(file)
}

// DeleteUser removes every persisted token for the user.
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeUser(userID)
}

// Load replays every persisted token into the registry. Expired tokens are
// skipped and removed from disk. Call this before registering the listener,
// or every replayed grant is immediately written back out.
func (s *Store) Load(registry *consent.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read token store directory: %w", err)
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		file, err := s.readFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable token file",
				slog.String("file", entry.Name()),
				logging.Err(err),
			)
			continue
		}

		changed := false
		for scope, tok := range file.Tokens {
			if !tok.ExpiresAt.IsZero() && now.After(tok.ExpiresAt) {
				delete(file.Tokens, scope)
				changed = true
				continue
			}
			registry.Store(file.UserID, scope, consent.Token{
				Value:     tok.Value,
				ExpiresAt: tok.ExpiresAt,
			})
		}

		if changed {
			if len(file.Tokens) == 0 {
				err = s.removeUser(file.UserID)
			} else {
				err = s.writeUser(file)
			}
			if err != nil {
				s.logger.Warn("failed to compact token file",
					logging.UserHash(file.UserID),
					logging.Err(err),
				)
			}
		}
	}
	return nil
}

// Listener returns a registry change listener that mirrors grants and
// revocations to disk.
func (s *Store) Listener(registry *consent.Registry) consent.ChangeListener {
	return func(userID string, scope consent.Scope) {
		token, err := registry.Get(userID, scope)
		switch {
		case err == nil:
			err = s.Save(token)
		case errors.Is(err, consent.ErrNotFound):
			err = s.Delete(userID, scope)
		}
		if err != nil {
			s.logger.Error("failed to persist consent change",
				logging.UserHash(userID),
				logging.Scope(string(scope)),
				logging.Err(err),
			)
		}
	}
}

func (s *Store) readUser(userID string) (userFile, error) {
	file, err := s.readFile(s.userPath(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return userFile{UserID: userID, Tokens: make(map[consent.Scope]persistedToken)}, nil
	}
	return file, err
}

func (s *Store) readFile(path string) (userFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return userFile{}, err
	}
	var file userFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return userFile{}, fmt.Errorf("malformed token file %s: %w", filepath.Base(path), err)
	}
	return file, nil
}

// writeUser writes the user's file via a temp file and rename.
func (s *Store) writeUser(file userFile) error {
	encoded, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token file: %w", err)
	}

	path := s.userPath(file.UserID)
	tmp, err := os.CreateTemp(s.dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(encoded); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) removeUser(userID string) error {
	err := os.Remove(s.userPath(userID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// userPath hashes the user ID into the file name so identities never appear
// in directory listings.
func (s *Store) userPath(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8])+".json")
}
