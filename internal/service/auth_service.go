package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agriconecta-api/internal/model"
	"agriconecta-api/internal/rbac"

	"github.com/golang-jwt/jwt/v4"
)

const tokenIssuer = "agriconecta-api"

// Servicio que emite y valida los tokens de sesión (HS256).
type AuthService struct {
	secret []byte
	ttl    time.Duration
}

type AuthUser struct {
	ID   string    `json:"id"`
	Name string    `json:"name"`
	Role rbac.Role `json:"role"`
}

// Can verifica si el rol del usuario permite la capacidad.
func (u *AuthUser) Can(c rbac.Capability) bool {
	return u != nil && rbac.Can(u.Role, c)
}

type Claims struct {
	Role rbac.Role `json:"role"`
	Name string    `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func NewAuthService(secret []byte, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{secret: secret, ttl: ttl}
}

// IssueToken firma un token para el usuario con expiración now+ttl.
func (a *AuthService) IssueToken(u *model.User, now time.Time) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	exp := now.Add(a.ttl)
	claims := Claims{
		Role: u.Role,
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Valida firma, expiración y rol. Cualquier fallo es ErrUnauthorized.
func (a *AuthService) ValidateToken(token string) (*AuthUser, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrUnauthorized
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, claims.Role)
	}

	return &AuthUser{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// SessionValidator valida el JWT y toma nombre y rol actuales de users,
// así un cambio de rol o un usuario borrado se aplica en la petición siguiente.
type SessionValidator struct {
	tokens *AuthService
	users  UserRepository
}

func NewSessionValidator(tokens *AuthService, users UserRepository) *SessionValidator {
	return &SessionValidator{tokens: tokens, users: users}
}

func (v *SessionValidator) Authenticate(ctx context.Context, token string) (*AuthUser, error) {
	claimed, err := v.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	u, err := v.users.FindByID(ctx, claimed.ID)
	if err != nil {
		if errors.Is(mapRepoErr(err), ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s no longer exists", ErrUnauthorized, claimed.ID)
		}
		return nil, err
	}
	if !u.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrUnauthorized, u.Role)
	}
	return &AuthUser{ID: u.ID, Name: u.Name, Role: u.Role}, nil
}
