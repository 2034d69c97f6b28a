package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agriconecta-api/internal/apperror"
	"agriconecta-api/internal/model"
	"agriconecta-api/internal/rbac"
	"agriconecta-api/internal/repository"
)

// Interfaz que debe implementar repository
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindByTrackingCode(ctx context.Context, code string) (*model.Order, error)
	List(ctx context.Context, f repository.OrderFilter) ([]*model.Order, int64, error)
	UpdateState(ctx context.Context, id string, expectedVersion int64, u repository.StateUpdate) (*model.Order, error)
	AppendHistory(ctx context.Context, id string, expectedVersion int64, entry model.HistoryEntry) (*model.Order, error)
	UpdatePayment(ctx context.Context, id string, expectedVersion int64, reference, proofRef string) (*model.Order, error)
}

// OrderReportSource is the read side the reports need.
type OrderReportSource interface {
	FindCreatedBetween(ctx context.Context, start, end time.Time) ([]*model.Order, error)
	CountByState(ctx context.Context) (map[model.OrderState]int64, error)
}

type SequenceGenerator interface {
	Next(ctx context.Context, name string) (int64, error)
}

type CategoryRepository interface {
	Create(ctx context.Context, c *model.Category) error
	Update(ctx context.Context, c *model.Category) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Category, error)
	FindBySlug(ctx context.Context, slug string) (*model.Category, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Category, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindBySlug(ctx context.Context, slug string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error)
	List(ctx context.Context, f repository.ProductFilter) ([]*model.Product, int64, error)
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// ProductLookup permite re-snapshotear items del carrito desde el catálogo.
type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Product, error)
}

// ProductStats alimenta el dashboard.
type ProductStats interface {
	CountActive(ctx context.Context) (int64, error)
	FindLowStock(ctx context.Context, threshold int, limit int64) ([]*model.Product, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	UpdateRole(ctx context.Context, id string, role rbac.Role) error
}

// Errores de negocio exportados (los usa el controller)
var (
	ErrNotFound            = errors.New("não encontrado")
	ErrConflict            = errors.New("conflito: o registo foi alterado ou já existe")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("token inválido")
	ErrInvalidTransition   = errors.New("transição de estado inválida")
	ErrCategoryHasProducts = errors.New("a categoria tem produtos associados")
	ErrInvalidCredentials  = errors.New("credenciais inválidas")
)

// ValidationError lista todos los campos inválidos de una entrada.
type ValidationError struct {
	Fields []apperror.FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

func fieldError(field, rule, message string) *ValidationError {
	return &ValidationError{Fields: []apperror.FieldError{{Field: field, Rule: rule, Message: message}}}
}

// mapRepoErr traduce los sentinels del repositorio a errores de negocio.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrConflict
	}
	return err
}

func contains[T comparable](arr []T, s T) bool {
	for _, v := range arr {
		if v == s {
			return true
		}
	}
	return false
}
