package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret NewCodec accepts.
const MinSecretLength = 32

var (
	// ErrInvalid covers every reason a token cannot be trusted other than
	// expiry: bad signature, malformed payload, wrong algorithm, wrong type or
	// wrong issuer.
	ErrInvalid = errors.New("jwtx: token invalid")

	// ErrExpired is returned only for tokens whose signature and type check
	// out but whose exp is in the past.
	ErrExpired = errors.New("jwtx: token expired")

	ErrWeakSecret = errors.New("jwtx: secret too short")
	ErrTTLOrder   = errors.New("jwtx: refresh ttl must exceed access ttl")
)

// Subject is the identity a token pair is issued for.
type Subject struct {
	ID          string
	Role        string
	Permissions []string
}

// Pair is a freshly issued access/refresh token pair with the claims that were
// signed into each half.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  Claims
	RefreshClaims Claims
}

// CodecOptions configures a Codec.
type CodecOptions struct {
	// Secret is the HMAC key shared by every instance. Required.
	Secret []byte

	// Issuer is written into and enforced on every token. Empty disables the
	// issuer check.
	Issuer string

	AccessTTL  time.Duration // default DefaultAccessTokenTTL
	RefreshTTL time.Duration // default DefaultRefreshTokenTTL

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Codec signs and verifies HS256 tokens. It holds no mutable state and is safe
// for concurrent use.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

// NewCodec validates opts and returns a ready Codec.
func NewCodec(opts CodecOptions) (*Codec, error) {
	if len(opts.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes", ErrWeakSecret, MinSecretLength)
	}

	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTokenTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTokenTTL
	}
	if opts.RefreshTTL <= opts.AccessTTL {
		return nil, ErrTTLOrder
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	secret := make([]byte, len(opts.Secret))
	copy(secret, opts.Secret)

	return &Codec{
		secret:     secret,
		issuer:     opts.Issuer,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		now:        opts.Now,
		// Claims are validated by hand below so that expiry is only reported
		// once the signature is known to be good.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

func (c *Codec) AccessTTL() time.Duration  { return c.accessTTL }
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue signs a new access/refresh pair for sub. Both halves share the same
// issue instant so access.exp < refresh.exp always holds.
func (c *Codec) Issue(sub Subject) (Pair, error) {
	now := c.now().UTC()

	access := NewClaims(sub.ID, sub.Role, sub.Permissions, TypeAccess, c.issuer, c.accessTTL, now)
	refresh := NewClaims(sub.ID, sub.Role, sub.Permissions, TypeRefresh, c.issuer, c.refreshTTL, now)

	accessToken, err := c.Sign(access)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, err := c.Sign(refresh)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessClaims:  access,
		RefreshClaims: refresh,
	}, nil
}

// Sign turns claims into a compact JWT.
func (c *Codec) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, type, issuer and expiry of token, in that
// order. The returned error is always ErrInvalid or ErrExpired (possibly
// wrapped) so callers can branch with errors.Is.
func (c *Codec) Verify(token string, want TokenType) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalid
	}

	var claims Claims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if claims.Type != want {
		return Claims{}, fmt.Errorf("%w: expected %s token, got %q", ErrInvalid, want, claims.Type)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalid)
	}
	if err := claims.ValidateIssuer(c.issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(c.now()); err != nil {
		return Claims{}, err
	}

	return claims, nil
}
