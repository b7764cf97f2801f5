package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps conversations in memory and, when dir is set, mirrors each
// one to <dir>/<session>.json. Writers to one session are serialized; writes
// go to a temp file that is renamed over the target.
type FileStore struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Conversation
	locks    map[string]*sync.Mutex
}

// NewFileStore creates a store rooted at dir. An empty dir keeps sessions in memory only.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	return &FileStore{
		dir:      dir,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Conversation),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// NewMemoryStore creates a store that never touches disk.
func NewMemoryStore() *FileStore {
	s, _ := NewFileStore("", nil)
	return s
}

// lock returns the held per-session mutex. The caller must unlock it.
func (s *FileStore) lock(sessionID string) (*sync.Mutex, error) {
	if !ValidID(sessionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, sessionID)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l, nil
}

// Get implements Store.
func (s *FileStore) Get(sessionID string) (*Conversation, error) {
	l, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	conv, err := s.load(sessionID)
	if err != nil || conv == nil {
		return nil, err
	}
	return conv.clone(), nil
}

// Create implements Store.
func (s *FileStore) Create(sessionID, userID string, metadata map[string]any) (*Conversation, error) {
	l, err := s.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer l.Unlock()

	now := s.now()
	conv := &Conversation{
		SessionID: sessionID,
		UserID:    userID,
		Metadata:  make(map[string]any, len(metadata)),
		History:   []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for k, v := range metadata {
		conv.Metadata[k] = v
	}

	if err := s.save(conv); err != nil {
		return nil, err
	}
	s.logger.Debug("session created", slog.String("session_id", sessionID))
	return conv.clone(), nil
}

// AppendHistory implements Store.
func (s *FileStore) AppendHistory(sessionID string, msg Message) error {
	l, err := s.lock(sessionID)
	if err != nil {
		return err
	}
	defer l.Unlock()

	conv, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	next := conv.clone()
	next.History = append(next.History, msg)
	next.UpdatedAt = msg.Timestamp
	return s.save(next)
}

// UpdateMetadata merges metadata into the session's metadata.
func (s *FileStore) UpdateMetadata(sessionID string, metadata map[string]any) error {
	l, err := s.lock(sessionID)
	if err != nil {
		return err
	}
	defer l.Unlock()

	conv, err := s.load(sessionID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	next := conv.clone()
	for k, v := range metadata {
		next.Metadata[k] = v
	}
	next.UpdatedAt = s.now()
	return s.save(next)
}

// Close implements Store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = make(map[string]*Conversation)
	return nil
}

// load returns the cached conversation, reading it from disk on first access.
// Callers hold the session lock.
func (s *FileStore) load(sessionID string) (*Conversation, error) {
	s.mu.Lock()
	conv, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok || s.dir == "" {
		return conv, nil
	}

	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	conv = &Conversation{}
	if err := json.Unmarshal(data, conv); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	if conv.Metadata == nil {
		conv.Metadata = make(map[string]any)
	}

	s.mu.Lock()
	s.sessions[sessionID] = conv
	s.mu.Unlock()
	return conv, nil
}

// save persists conv and then publishes it to the cache. Callers hold the session lock.
func (s *FileStore) save(conv *Conversation) error {
	if s.dir != "" {
		data, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		if err := writeFileAtomic(s.path(conv.SessionID), data); err != nil {
			return fmt.Errorf("failed to persist session %s: %w", conv.SessionID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sessions[conv.SessionID] = conv
	return nil
}

func (s *FileStore) path(sessionID string) string {
	return filepath.Join(s.dir, sessionID+".json")
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
