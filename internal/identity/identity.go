// Package identity hands out the per-visitor token that limits each visitor
// to a single post.
package identity

import (
	"freedomwall/internal/models"
	"freedomwall/internal/providers"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TokenKey is the namespaced storage key of the visitor token.
const TokenKey = "freedomwall:visitorToken"

const (
	tokenPrefix    = "user_"
	randomPartLen  = 9
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

type TokenProvider interface {
	GetOrCreateToken() string
}

type RandomSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

type Option func(*Store)

func WithRandomSource(r RandomSource) Option {
	return func(s *Store) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store reads the token from storage and creates it on first use. When the
// storage cannot be read or written it falls back to a token that only lives
// as long as the process.
type Store struct {
	mu      sync.Mutex
	storage KeyValueStorage
	logger  providers.Logger
	rand    RandomSource
	now     func() time.Time

	session    string
	persistent bool
}

func NewStore(storage KeyValueStorage, logger providers.Logger, opts ...Option) *Store {
	s := &Store{
		storage:    storage,
		logger:     logger,
		rand:       globalRand{},
		now:        time.Now,
		persistent: storage != nil,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) GetOrCreateToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.persistent && s.session != "" {
		return s.session
	}
	if s.storage != nil {
		token, ok, err := s.storage.Get(TokenKey)
		switch {
		case err != nil:
			s.degrade(err)
		case ok && token != "":
			s.session = token
			return token
		}
	}

	if s.session == "" {
		s.session = s.generate()
	}
	if s.persistent {
		if err := s.storage.Set(TokenKey, s.session); err != nil {
			s.degrade(err)
		}
	}
	return s.session
}

// Persistent reports whether the token survives the process.
func (s *Store) Persistent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent
}

func (s *Store) degrade(err error) {
	if s.persistent {
		s.logger.Warnf(providers.TypeApp, "%s: %s; visitor token is kept for this session only", models.ErrIdentityPersistenceUnavailable, err)
	}
	s.persistent = false
}

func (s *Store) generate() string {
	var b strings.Builder
	b.WriteString(tokenPrefix)
	for range randomPartLen {
		b.WriteByte(base36Alphabet[s.rand.IntN(len(base36Alphabet))])
	}
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(s.now().UnixMilli(), 10))
	return b.String()
}
