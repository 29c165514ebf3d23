package api

import (
	"errors"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	DefaultJWKSCacheTTL = 15 * time.Minute
	DefaultTokenExpiry  = 7 * 24 * time.Hour
)

var errTokenIssuingDisabled = errors.New("token issuing requires a shared secret")

// AuthConfig configures token verification and issuing. With a JWKS, RS256
// tokens from the identity provider are accepted. With a Secret, HS256 tokens
// are accepted and issued on register and login.
type AuthConfig struct {
	Secret      []byte
	Expiry      time.Duration
	Audience    string
	Issuer      string
	JWKS        *keyfunc.JWKS
	KeyCacheTTL time.Duration
}

// Auth validates incoming JWT tokens and issues local ones.
type Auth struct {
	JWKS     *keyfunc.JWKS
	Audience string
	Issuer   string
	Secret   []byte
	Expiry   time.Duration

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
	now         func() time.Time
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates a new Auth instance.
func NewAuth(cfg AuthConfig) (*Auth, error) {
	if len(cfg.Secret) == 0 && cfg.JWKS == nil {
		return nil, errors.New("auth needs a shared secret or a JWKS")
	}
	a := &Auth{
		JWKS:        cfg.JWKS,
		Audience:    cfg.Audience,
		Issuer:      cfg.Issuer,
		Secret:      cfg.Secret,
		Expiry:      cfg.Expiry,
		keyCacheTTL: cfg.KeyCacheTTL,
		now:         time.Now,
	}
	if a.Expiry <= 0 {
		a.Expiry = DefaultTokenExpiry
	}

	var methods []string
	if len(a.Secret) > 0 {
		methods = append(methods, "HS256")
	}
	if a.JWKS != nil {
		methods = append(methods, "RS256")
	}
	a.parser = jwt.NewParser(jwt.WithValidMethods(methods))
	return a, nil
}

// UserIDFromBearer verifies a raw bearer token and returns its subject.
func (a *Auth) UserIDFromBearer(token string) (string, error) {
	if token == "" {
		return "", errBadAuthorization
	}

	parsedToken, err := a.parser.Parse(token, a.keyForToken)
	if err != nil {
		return "", err
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := a.now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return "", errors.New("token used before issued")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return "", errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

// IssueToken signs an HS256 token for userID.
func (a *Auth) IssueToken(userID string) (string, error) {
	if len(a.Secret) == 0 {
		return "", errTokenIssuingDisabled
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(a.Expiry).Unix(),
	}
	if a.Audience != "" {
		claims["aud"] = a.Audience
	}
	if a.Issuer != "" {
		claims["iss"] = a.Issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		if len(a.Secret) == 0 {
			return nil, errors.New("invalid signing method")
		}
		return a.Secret, nil
	}
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if a.now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: a.now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
