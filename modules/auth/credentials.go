package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	domain "github.com/example/realtime-chat-demo/domain/user"
)

var (
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when a token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// Token kinds. An access token carries session identity to the websocket
// handshake; a refresh token can only be exchanged for a new pair. One can
// never stand in for the other.
const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// CredentialsConfig configures token signing and password hashing. Zero
// fields fall back to development defaults.
type CredentialsConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
}

// Credentials owns everything secret-shaped in the auth module: the bcrypt
// hashes accounts are stored with and the signed tokens that bind session
// identity at the websocket handshake.
type Credentials struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	cost       int
}

// NewCredentials creates a Credentials from config, filling in defaults.
func NewCredentials(cfg CredentialsConfig) *Credentials {
	if cfg.Secret == "" {
		cfg.Secret = "dev-secret-change-in-production"
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "realtime-chat-demo"
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = 12 * time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	return &Credentials{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		cost:       cfg.BcryptCost,
	}
}

// HashPassword returns the bcrypt hash an account is stored with.
func (c *Credentials) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (c *Credentials) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sessionClaims is the signed content of a token. Identity rides in the
// registered subject plus the username claim.
type sessionClaims struct {
	Username string `json:"username"`
	Kind     string `json:"kind"`
	jwt.RegisteredClaims
}

// IssueTokens signs a fresh access/refresh pair for an account.
func (c *Credentials) IssueTokens(user *domain.User) (*domain.TokenPair, error) {
	access, err := c.sign(user, tokenKindAccess, c.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := c.sign(user, tokenKindRefresh, c.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(c.accessTTL.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// VerifyAccess verifies an access token and returns the identity it binds.
func (c *Credentials) VerifyAccess(token string) (domain.Claims, error) {
	claims, err := c.parse(token, tokenKindAccess)
	if err != nil {
		return domain.Claims{}, err
	}
	return domain.Claims{
		UserID:   claims.Subject,
		Username: claims.Username,
	}, nil
}

// VerifyRefresh verifies a refresh token and returns the account ID it was
// issued to.
func (c *Credentials) VerifyRefresh(token string) (string, error) {
	claims, err := c.parse(token, tokenKindRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Credentials) sign(user *domain.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Username: user.Username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *Credentials) parse(token, kind string) (*sessionClaims, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Kind != kind {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
