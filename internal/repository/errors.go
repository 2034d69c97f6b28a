package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("registro não encontrado")
	// ErrVersionConflict: el documento cambió entre la lectura y la escritura.
	ErrVersionConflict = errors.New("conflito de versão")
	ErrDuplicate       = errors.New("registro duplicado")
	// ErrMissingHistory: un pedido nunca se guarda sin su entrada inicial.
	ErrMissingHistory = errors.New("pedido sem histórico inicial")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxPageNumber   = 10000
)

// Page normaliza paginación 1-based.
type Page struct {
	Number int
	Size   int
}

// Normalized aplica defaults y límites.
func (p Page) Normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Number > maxPageNumber {
		p.Number = maxPageNumber
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

func (p Page) skip() int64 {
	n := p.Normalized()
	return int64(n.Number-1) * int64(n.Size)
}

func (p Page) limit() int64 {
	return int64(p.Normalized().Size)
}

func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}
