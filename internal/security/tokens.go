package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type discriminator carried in the "type" claim so a presented token
// can be classified without a side channel.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or otherwise invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// Claims holds the JWT claims for both access and refresh tokens.
// TokenType is "access" or "refresh"; CSRF is set on refresh tokens only and
// backs the double-submit cookie defense on the refresh endpoint.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
	CSRF      string `json:"csrf,omitempty"`
}

// TokenProvider issues and validates JWT access and refresh tokens using RS256 or ES256 (private/public key).
// The signing key, issuer, audience, and TTLs are process-wide configuration, not per-session state.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and validated on parse.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenProvider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess mints a short-lived access JWT for the given account.
// Each issuance generates a fresh UUID jti; the jti is the session registry's join key.
func (p *TokenProvider) IssueAccess(accountID int64) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(p.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeAccess,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueRefresh mints a long-lived refresh JWT for the given account.
// Returns the token, its jti, and the embedded CSRF value the caller must
// also set as a readable cookie for the double-submit check.
func (p *TokenProvider) IssueRefresh(accountID int64) (token, jti, csrf string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	csrf = uuid.NewString()
	now := time.Now().UTC()
	expiresAt = now.Add(p.refreshTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.FormatInt(accountID, 10),
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: TokenTypeRefresh,
		CSRF:      csrf,
	}
	token, err = p.sign(claims)
	return token, jti, csrf, expiresAt, err
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	t := jwt.NewWithClaims(method, claims)
	return t.SignedString(p.privateKey)
}

// parse validates signature, exp, iss, and aud, and returns the claims.
func (p *TokenProvider) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return p.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == p.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccess parses and validates an access token.
// Returns the account ID and the token's jti, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (accountID int64, jti string, err error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return 0, "", err
	}
	if claims.TokenType != TokenTypeAccess {
		return 0, "", ErrInvalidToken
	}
	accountID, err = parseSubject(claims.Subject)
	if err != nil {
		return 0, "", err
	}
	return accountID, claims.ID, nil
}

// ValidateRefresh parses and validates a refresh token.
// Returns the account ID, the token's jti, and its embedded CSRF value.
func (p *TokenProvider) ValidateRefresh(tokenString string) (accountID int64, jti, csrf string, err error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return 0, "", "", err
	}
	if claims.TokenType != TokenTypeRefresh {
		return 0, "", "", ErrInvalidToken
	}
	accountID, err = parseSubject(claims.Subject)
	if err != nil {
		return 0, "", "", err
	}
	return accountID, claims.ID, claims.CSRF, nil
}

// Classify parses and validates a token of either type and returns its
// declared type alongside the account ID and jti. Used on logout, where the
// caller may present an access token or a refresh token.
func (p *TokenProvider) Classify(tokenString string) (accountID int64, jti, tokenType string, err error) {
	claims, err := p.parse(tokenString)
	if err != nil {
		return 0, "", "", err
	}
	if claims.TokenType != TokenTypeAccess && claims.TokenType != TokenTypeRefresh {
		return 0, "", "", ErrInvalidToken
	}
	accountID, err = parseSubject(claims.Subject)
	if err != nil {
		return 0, "", "", err
	}
	return accountID, claims.ID, claims.TokenType, nil
}

func parseSubject(sub string) (int64, error) {
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
