package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// LoginInput is a password login attempt from IP.
type LoginInput struct {
	Account  string
	Password string
	IP       string
}

// Session is the outcome of a successful login.
type Session struct {
	Pair      domain.TokenPair
	Principal domain.Principal
}

// SessionService handles password login and logout.
type SessionService struct {
	Principals store.Principals
	Tokens     *TokenService
	Guard      *Guard
	Hasher     cryptox.Hasher

	dummyOnce sync.Once
	dummyHash string
}

// Login runs the brute-force guard, then verifies the credentials. The order
// is progressive delay, lockout, attempt ceiling, credential check.
func (s *SessionService) Login(ctx context.Context, in LoginInput) (Session, error) {
	key := domain.AttemptKey(in.IP, in.Account)
	ctx = slogx.With(ctx, slog.String("account_key", key))
	log := slogx.FromContext(ctx)

	if err := s.Guard.Delay(ctx, key); err != nil {
		return Session{}, err
	}
	if err := s.Guard.CheckLockout(ctx, key); err != nil {
		return Session{}, err
	}
	if err := s.Guard.CheckAndIncrement(ctx, key); err != nil {
		return Session{}, err
	}

	cred, err := s.Principals.GetCredential(ctx, domain.NormalizeAccount(in.Account))
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Burn the same hashing time as a real check so unknown accounts are
		// not distinguishable by latency.
		_ = s.Hasher.Verify(in.Password, s.dummy())
		return Session{}, s.fail(ctx, key)
	case err != nil:
		log.Error("failed to load credential", "error", err)
		return Session{}, domain.E(domain.KindDatabase, err)
	}

	if err := s.Hasher.Verify(in.Password, cred.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			log.Error("stored password hash is unusable", "principal_id", cred.PrincipalID, "error", err)
		}
		return Session{}, s.fail(ctx, key)
	}

	principal, err := s.Principals.GetPrincipal(ctx, cred.PrincipalID)
	if err != nil {
		log.Error("failed to load principal", "principal_id", cred.PrincipalID, "error", err)
		return Session{}, domain.E(domain.KindDatabase, err)
	}
	if !principal.Active {
		return Session{}, domain.ErrAccountInactive
	}

	if err := s.Guard.Clear(ctx, key); err != nil {
		return Session{}, err
	}

	pair, err := s.Tokens.Issue(principal)
	if err != nil {
		log.Error("failed to issue token pair", "error", err)
		return Session{}, err
	}

	log.Info("login succeeded", "principal_id", principal.ID)
	return Session{Pair: pair, Principal: principal}, nil
}

// Logout revokes whichever of the two tokens were presented.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.Tokens.Revoke(ctx, accessToken, jwtx.TypeAccess); err != nil {
		return err
	}
	return s.Tokens.Revoke(ctx, refreshToken, jwtx.TypeRefresh)
}

func (s *SessionService) fail(ctx context.Context, key string) error {
	if _, err := s.Guard.RecordFailure(ctx, key); err != nil {
		return err
	}
	return domain.ErrInvalidCredentials
}

func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("gatekeeper-timing-dummy")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
