package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm a Codec signs with.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// TokenType distinguishes access tokens from refresh tokens. It travels in the
// "typ" claim so one kind can never be presented in place of the other.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// minHMACKeyLen is the shortest HS256 secret NewCodec accepts.
const minHMACKeyLen = 32

var (
	// ErrMalformed reports a token that cannot be decoded or lacks required claims.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrInvalidSignature reports a signature that does not verify under the
	// configured key or algorithm.
	ErrInvalidSignature = errors.New("jwt: invalid signature")
	// ErrExpired reports an authentic token whose expiry has passed.
	ErrExpired = errors.New("jwt: token expired")
	// ErrWrongType reports an authentic token of the other kind.
	ErrWrongType = errors.New("jwt: wrong token type")
	// ErrNoSigningKey is returned by Issue on a verify-only codec.
	ErrNoSigningKey = errors.New("jwt: codec has no signing key")
)

// Config holds the codec's lifetimes and key material.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string

	// Now overrides the clock used for issuing and expiry checks.
	Now func() time.Time
}

// Claims is the payload of every token the codec signs. Subject carries the
// username and ID the token id; for refresh tokens ID is the TokenStore key
// and Family the id of the login that started the rotation chain.
type Claims struct {
	Role   string    `json:"role,omitempty"`
	Type   TokenType `json:"typ"`
	Family string    `json:"fam,omitempty"`
	jwt.RegisteredClaims
}

// FamilyID returns the rotation chain of a refresh token. Tokens signed
// without a "fam" claim form a chain of their own.
func (c *Claims) FamilyID() string {
	if c.Family != "" {
		return c.Family
	}
	return c.ID
}

// Issued is a freshly signed token together with the values a caller needs
// for storage and cookies.
type Issued struct {
	Token     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs and verifies tokens. Construct with NewCodec.
type Codec struct {
	cfg       Config
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	now       func() time.Time
}

// NewCodec validates cfg and resolves its keys once.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.PrivateKey = append([]byte(nil), cfg.PrivateKey...)
	cfg.PublicKey = append([]byte(nil), cfg.PublicKey...)

	c := &Codec{cfg: cfg, now: cfg.Now}
	if c.now == nil {
		c.now = time.Now
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACKeyLen {
			return nil, fmt.Errorf("hs256 requires a key of at least %d bytes", minHMACKeyLen)
		}
		c.method = jwt.SigningMethodHS256
		c.signKey = cfg.PrivateKey
		c.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		c.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			c.signKey = priv
			c.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			c.verifyKey = pub
		}
		if c.verifyKey == nil {
			return nil, errors.New("ed25519 requires a private or public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return c, nil
}

// CanSign reports whether the codec holds a signing key.
func (c *Codec) CanSign() bool { return c.signKey != nil }

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// IssueAccess signs an access token for subject carrying role.
func (c *Codec) IssueAccess(subject, role string) (Issued, error) {
	return c.Issue(Claims{
		Role: role,
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
			ID:      uuid.NewString(),
		},
	}, c.cfg.AccessTTL)
}

// IssueRefresh signs a refresh token for subject under tokenID as part of
// the rotation chain family. An empty family starts a chain named tokenID.
func (c *Codec) IssueRefresh(subject, tokenID, family string) (Issued, error) {
	if tokenID == "" {
		return Issued{}, errors.New("refresh token id is required")
	}
	if family == "" {
		family = tokenID
	}
	return c.Issue(Claims{
		Type:   TypeRefresh,
		Family: family,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject,
			ID:      tokenID,
		},
	}, c.cfg.RefreshTTL)
}

// Issue stamps iat, exp, iss and aud onto claims and signs them. A missing
// token id is filled with a random UUID.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (Issued, error) {
	if c.signKey == nil {
		return Issued{}, ErrNoSigningKey
	}
	if claims.Subject == "" {
		return Issued{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return Issued{}, errors.New("token ttl must be positive")
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	now := c.now().Truncate(time.Second)
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	if c.cfg.Issuer != "" {
		claims.Issuer = c.cfg.Issuer
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	token := jwt.NewWithClaims(c.method, claims)
	if c.cfg.KeyID != "" {
		token.Header["kid"] = c.cfg.KeyID
	}
	signed, err := token.SignedString(c.signKey)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ID: claims.ID, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks signature, algorithm and expiry of token and returns its
// claims. The signature is checked first, so ErrExpired is only reported for
// tokens the codec itself signed.
func (c *Codec) Verify(token string) (*Claims, error) {
	return c.parse(token, false)
}

// VerifyAccess is Verify restricted to access tokens.
func (c *Codec) VerifyAccess(token string) (*Claims, error) {
	return c.verifyType(token, TypeAccess, false)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (c *Codec) VerifyRefresh(token string) (*Claims, error) {
	return c.verifyType(token, TypeRefresh, false)
}

// VerifyRefreshAllowExpired authenticates a refresh token without enforcing
// its time claims. Logout uses it to revoke tokens that have already lapsed.
func (c *Codec) VerifyRefreshAllowExpired(token string) (*Claims, error) {
	return c.verifyType(token, TypeRefresh, true)
}

func (c *Codec) verifyType(token string, want TokenType, allowExpired bool) (*Claims, error) {
	claims, err := c.parse(token, allowExpired)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, allowExpired bool) (*Claims, error) {
	if strings.TrimSpace(tokenStr) == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	} else {
		options = append(options, jwt.WithExpirationRequired())
		if c.cfg.Leeway > 0 {
			options = append(options, jwt.WithLeeway(c.cfg.Leeway))
		}
		if c.cfg.Issuer != "" {
			options = append(options, jwt.WithIssuer(c.cfg.Issuer))
		}
		if c.cfg.Audience != "" {
			options = append(options, jwt.WithAudience(c.cfg.Audience))
		}
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, c.keyFunc)
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrMalformed
	}
	if allowExpired && c.cfg.Issuer != "" && claims.Issuer != c.cfg.Issuer {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (c *Codec) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if c.cfg.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != c.cfg.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return c.verifyKey, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
