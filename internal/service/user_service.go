package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agriconecta-api/internal/dto"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/rbac"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type TokenIssuer interface {
	IssueToken(u *model.User, now time.Time) (string, time.Time, error)
}

type UserService struct {
	users  UserRepository
	tokens TokenIssuer
	cost   int
	logger *zap.Logger
	clock  func() time.Time
}

func NewUserService(users UserRepository, tokens TokenIssuer, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:  users,
		tokens: tokens,
		cost:   bcrypt.DefaultCost,
		logger: logger.With(zap.String("component", "users")),
		clock:  time.Now,
	}
}

// Register crea un cliente. Basta email o teléfono; ambos son únicos.
func (s *UserService) Register(ctx context.Context, req dto.RegisterRequest) (*model.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = NormalizePhone(req.Phone)

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.Email == "" && req.Phone == "" {
		return nil, fieldError("email", "required_without", "indique email ou telefone")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         rbac.RoleCustomer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID))
	return u, nil
}

// Login acepta email (si contiene "@") o teléfono como identificador.
func (s *UserService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(req.Identifier)
	var (
		u   *model.User
		err error
	)
	if strings.Contains(id, "@") {
		u, err = s.users.FindByEmail(ctx, strings.ToLower(id))
	} else {
		u, err = s.users.FindByPhone(ctx, NormalizePhone(id))
	}
	if err != nil {
		if errors.Is(mapRepoErr(err), ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.IssueToken(u, s.clock())
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return u, nil
}

// SetRole cambia el rol; un SUPER_ADMIN no puede quitarse el rol a sí mismo.
func (s *UserService) SetRole(ctx context.Context, actor *AuthUser, id string, raw string) (*model.User, error) {
	role, ok := rbac.Parse(raw)
	if !ok {
		return nil, fieldError("role", "oneof", "papel inválido")
	}
	if actor != nil && actor.ID == id && role != actor.Role {
		return nil, ErrForbidden
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, mapRepoErr(err)
	}
	s.logger.Info("user role changed", zap.String("user_id", id), zap.String("role", string(role)))
	return s.Get(ctx, id)
}

// EnsureSuperAdmin crea el primer SUPER_ADMIN al arrancar. Si el email ya existe
// solo se promueve; la contraseña guardada no se toca.
func (s *UserService) EnsureSuperAdmin(ctx context.Context, email, password, name string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fieldError("email", "required", "email obrigatório")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == rbac.RoleSuperAdmin {
			return existing, nil
		}
		if err := s.users.UpdateRole(ctx, existing.ID, rbac.RoleSuperAdmin); err != nil {
			return nil, mapRepoErr(err)
		}
		s.logger.Warn("bootstrap user promoted to super admin", zap.String("user_id", existing.ID))
		return s.Get(ctx, existing.ID)
	case !errors.Is(mapRepoErr(err), ErrNotFound):
		return nil, err
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrador"
	}
	req := dto.RegisterRequest{Name: strings.TrimSpace(name), Email: email, Password: password}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock().UTC()
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         rbac.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, mapRepoErr(err)
	}
	s.logger.Info("bootstrap super admin created", zap.String("user_id", u.ID))
	return u, nil
}
