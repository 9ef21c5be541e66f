package sqlite

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
)

const (
	getPrincipalSQL = `
SELECT id, account, role, permissions, active FROM principals WHERE id = ?`

	getCredentialSQL = `
SELECT id, account, password_hash FROM principals WHERE account = ?`

	createPrincipalSQL = `
INSERT INTO principals (id, account, password_hash, role, permissions, active)
VALUES (?, ?, ?, ?, ?, ?)`

	setActiveSQL = `
UPDATE principals SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
)

func (s *Store) GetPrincipal(ctx context.Context, id string) (domain.Principal, error) {
	var p domain.Principal
	var perms string
	err := s.db.QueryRowContext(ctx, getPrincipalSQL, id).Scan(&p.ID, &p.Account, &p.Role, &perms, &p.Active)
	if err != nil {
		return domain.Principal{}, mapNotFound(err)
	}
	p.Permissions = strings.Fields(perms)
	return p, nil
}

func (s *Store) GetCredential(ctx context.Context, account string) (domain.Credential, error) {
	var c domain.Credential
	err := s.db.QueryRowContext(ctx, getCredentialSQL, domain.NormalizeAccount(account)).
		Scan(&c.PrincipalID, &c.Account, &c.PasswordHash)
	if err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	return c, nil
}

func (s *Store) CreatePrincipal(ctx context.Context, p domain.Principal, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, createPrincipalSQL,
		p.ID,
		domain.NormalizeAccount(p.Account),
		passwordHash,
		p.Role,
		strings.Join(p.Permissions, " "),
		p.Active,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return store.Unavailable(err)
}

func (s *Store) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, setActiveSQL, active, id)
	if err != nil {
		return store.Unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
