package services

import (
	"context"

	"gorm.io/gorm"

	apperrors "github.com/charlesng35/userapi/pkg/errors"
)

// StoreProvider resolves the relational store for a single operation.
// Implementations may connect lazily and return a service-unavailable error.
type StoreProvider interface {
	Store(ctx context.Context) (*gorm.DB, error)
}

// StoreFunc adapts a function to StoreProvider.
type StoreFunc func(ctx context.Context) (*gorm.DB, error)

func (f StoreFunc) Store(ctx context.Context) (*gorm.DB, error) { return f(ctx) }

// StaticStore returns a provider for an already opened handle.
func StaticStore(db *gorm.DB) StoreProvider {
	return StoreFunc(func(context.Context) (*gorm.DB, error) {
		if db == nil {
			return nil, apperrors.NewServiceUnavailable("Database not configured")
		}
		return db, nil
	})
}
