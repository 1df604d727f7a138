package service

import (
	"log/slog"

	"github.com/yndnr/svcreg-go/internal/core/domain"
	"github.com/yndnr/svcreg-go/pkg/token"
)

// noTokenID is never handed out.
const noTokenID uint64 = 0

type tokenEntry struct {
	service domain.Handle
	token   []byte
}

// TokenManager exchanges a reference for an opaque token and back.
//
// Tokens are id ‖ MAC(id). The id keeps them unique, the MAC keeps them
// unguessable. Like ServiceManager it is not safe for concurrent use.
type TokenManager struct {
	secret   []byte
	counter  uint64
	tokens   map[uint64]tokenEntry
	recorder Recorder
	logger   *slog.Logger
}

// NewTokenManager creates a TokenManager signing with secret. A nil secret
// is replaced by a random one; failing to create it is fatal to the caller.
func NewTokenManager(secret []byte, recorder Recorder, logger *slog.Logger) (*TokenManager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = NopRecorder()
	}
	if len(secret) == 0 {
		s, err := token.NewSecret()
		if err != nil {
			return nil, domain.ErrInternal.WithDetails("token secret").WithCause(err)
		}
		secret = s
	}

	return &TokenManager{
		secret:   secret,
		tokens:   make(map[uint64]tokenEntry),
		recorder: recorder,
		logger:   logger,
	}, nil
}

// CreateToken stores ref and returns its token, or nil on failure.
func (t *TokenManager) CreateToken(ref domain.Handle) []byte {
	if ref.IsZero() {
		return nil
	}

	t.counter++
	id := t.counter
	tok, err := token.Build(t.secret, id)
	if err != nil {
		t.logger.Error("cannot sign token", "error", err)
		return nil
	}

	t.tokens[id] = tokenEntry{service: ref, token: tok}
	return tok
}

// Get returns the reference tok was created for, or zero.
func (t *TokenManager) Get(tok []byte) domain.Handle {
	id, ok := t.lookup(tok)
	if !ok {
		return domain.Handle{}
	}
	return t.tokens[id].service
}

// Unregister forgets tok. It reports whether tok was valid.
func (t *TokenManager) Unregister(tok []byte) bool {
	id, ok := t.lookup(tok)
	if !ok {
		return false
	}
	delete(t.tokens, id)
	return true
}

// Len returns the number of live tokens.
func (t *TokenManager) Len() int {
	return len(t.tokens)
}

func (t *TokenManager) lookup(tok []byte) (uint64, bool) {
	id, ok := token.ID(tok)
	if !ok {
		t.recorder.TokenReject("short")
		return 0, false
	}
	if id == noTokenID {
		t.recorder.TokenReject("reserved")
		return 0, false
	}

	entry, ok := t.tokens[id]
	if !ok {
		t.recorder.TokenReject("unknown")
		return 0, false
	}
	if !token.Equal(tok, entry.token) {
		t.logger.Error("token with invalid MAC, possible forgery", "token_id", id)
		t.recorder.TokenReject("forged")
		return 0, false
	}
	return id, true
}
