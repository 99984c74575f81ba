package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/models"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/logger"
)

const userCacheTTL = 60 * time.Second

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrEmailTaken is returned when the email unique index rejects an insert.
	ErrEmailTaken = apperrors.New("USER_EMAIL_CONFLICT", "Email already exists", http.StatusConflict)
	// ErrNameEmailRequired rejects a create request missing either field.
	ErrNameEmailRequired = apperrors.NewValidation("Name and email are required")
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Name  string
	Email string
}

// UserService reads and creates users. Single-user reads go through the cache when one is bound.
type UserService struct {
	store StoreProvider
	cache *cache.Facade
	log   *zap.Logger
}

// NewUserService constructs a UserService instance. A nil cache disables caching.
func NewUserService(store StoreProvider, c *cache.Facade) (*UserService, error) {
	if store == nil {
		return nil, errors.New("user service: store provider is required")
	}
	return &UserService{
		store: store,
		cache: c,
		log:   logger.WithModule("users"),
	}, nil
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	db, err := s.store.Store(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0)
	if err := db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetByID loads a single user, consulting the cache first.
func (s *UserService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	key := userCacheKey(id)

	var cached models.User
	if s.cache.Get(ctx, key, &cached) == cache.OutcomeOK && cached.ID == id {
		return &cached, nil
	}

	db, err := s.store.Store(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	s.cache.Set(ctx, key, user, userCacheTTL)
	return &user, nil
}

// Create inserts a new user with name and email exactly as given. Values
// that are blank after trimming are rejected. A duplicate email yields ErrEmailTaken.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" {
		return nil, ErrNameEmailRequired
	}

	db, err := s.store.Store(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     input.Name,
		Email:    input.Email,
		IsActive: true,
	}
	if err := db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken.WithInternal(err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user created", zap.Uint("id", user.ID))
	return user, nil
}

func userCacheKey(id uint) string {
	return fmt.Sprintf("users:%d", id)
}
