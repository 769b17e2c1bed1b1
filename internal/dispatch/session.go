package dispatch

import (
	"errors"

	"github.com/mesh-intelligence/hive/internal/stream"
)

// ErrKeyMinted is returned when a second shutdown key is requested.
var ErrKeyMinted = errors.New("shutdown key already minted")

// UnsetInstance is the instance id before any stream has recorded one.
const UnsetInstance = -1

// Session is the process-wide mutable state handed to every handler. The
// dispatcher serializes calls, so handlers may use it without locking.
type Session struct {
	streams  *stream.Registry
	key      string
	instance int
	newKey   func() (string, error)
}

// NewSession returns a session with no streams in progress and no key.
func NewSession() *Session {
	return &Session{
		streams:  stream.NewRegistry(),
		instance: UnsetInstance,
		newKey:   stream.NewSessionKey,
	}
}

// Stream returns the named cursor.
func (s *Session) Stream(name string) *stream.Cursor {
	return s.streams.Cursor(name)
}

// ShutdownKey returns the minted key, or "" before one exists.
func (s *Session) ShutdownKey() string { return s.key }

// MintShutdownKey generates the key for this process. It succeeds once.
func (s *Session) MintShutdownKey() (string, error) {
	if s.key != "" {
		return "", ErrKeyMinted
	}
	key, err := s.newKey()
	if err != nil {
		return "", err
	}
	s.key = key
	return key, nil
}

// KeyMatches reports whether key equals the minted key. It is always false
// before a key exists.
func (s *Session) KeyMatches(key string) bool {
	return s.key != "" && key == s.key
}

// Instance returns the server instance id recorded by the object stream.
func (s *Session) Instance() int { return s.instance }

// SetInstance records the server instance id.
func (s *Session) SetInstance(id int) { s.instance = id }
