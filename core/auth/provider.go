package auth

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/learnhub/backend/core"
	"github.com/learnhub/backend/core/user"
)

var (
	ErrUnauthorized   = errors.New("user not authenticated")
	ErrRefreshExpired = errors.New("refresh has expired")

	nowFunc = time.Now // mockable
)

type (
	// Identity is the verified caller behind a bearer credential.
	Identity struct {
		UserID       string
		Role         user.Role
		OrigIssuedAt time.Time
	}

	// IdentityProvider verifies bearer credentials.
	IdentityProvider interface {
		Verify(ctx context.Context, token string) (Identity, error)
	}

	// Claims represents the authorization claims transmitted via a JWT.
	Claims struct {
		jwt.StandardClaims
		OrigIssuedAt int64     `json:"oriat,omitempty"`
		Email        string    `json:"email,omitempty"`
		Role         user.Role `json:"role,omitempty"`
	}

	// JWTProvider issues and verifies HS256 signed tokens.
	JWTProvider struct {
		signingKey   []byte
		issuer       string
		expDelta     time.Duration
		refreshDelta time.Duration
	}
)

var _ IdentityProvider = (*JWTProvider)(nil)

func NewJWTProvider(conf *core.Config) *JWTProvider {
	return &JWTProvider{
		signingKey:   []byte(conf.SecretKey),
		issuer:       conf.AppName,
		expDelta:     conf.Server.JWTExpirationDelta,
		refreshDelta: conf.Server.JWTRefreshExpirationDelta,
	}
}

// Issue generates a signed token for usr. origIat is kept across refreshes.
func (p *JWTProvider) Issue(usr user.User, origIat ...time.Time) (string, error) {
	now := nowFunc()
	oriat := now
	if len(origIat) > 0 && !origIat[0].IsZero() {
		oriat = origIat[0]
	}

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    p.issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(p.expDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: oriat.Unix(),
		Email:        usr.Email,
		Role:         usr.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(p.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (p *JWTProvider) Verify(_ context.Context, tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, ErrUnauthorized
	}

	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.signingKey, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Identity{}, ErrUnauthorized
	}

	return Identity{
		UserID:       claims.Subject,
		Role:         claims.Role,
		OrigIssuedAt: time.Unix(claims.OrigIssuedAt, 0),
	}, nil
}

// Refresh issues a new token for usr while the refresh window opened at id.OrigIssuedAt is still open.
func (p *JWTProvider) Refresh(id Identity, usr user.User) (string, error) {
	if !usr.IsActive {
		return "", user.ErrAccountDeactivated
	}
	if nowFunc().After(id.OrigIssuedAt.Add(p.refreshDelta)) {
		return "", ErrRefreshExpired
	}
	return p.Issue(usr, id.OrigIssuedAt)
}
