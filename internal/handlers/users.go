package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/userapi/internal/cache"
	"github.com/charlesng35/userapi/internal/middleware"
	"github.com/charlesng35/userapi/internal/services"
	apperrors "github.com/charlesng35/userapi/pkg/errors"
	"github.com/charlesng35/userapi/pkg/response"
)

type UserHandler struct {
	service *services.UserService
}

type createUserRequest struct {
	Name  string `json:"name" validate:"notblank,max=255"`
	Email string `json:"email" validate:"notblank,email,max=255"`
}

func NewUserHandler(store services.StoreProvider, c *cache.Facade) (*UserHandler, error) {
	us, err := services.NewUserService(store, c)
	if err != nil {
		return nil, err
	}
	return &UserHandler{service: us}, nil
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.service.List(requestContext(c))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.SuccessWithCount(c, http.StatusOK, users, len(users))
}

// GET /api/users/:id
// Non-numeric ids are rejected; numeric ids that cannot name a row are not found.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		middleware.Abort(c, apperrors.NewValidation("Invalid user id"))
		return
	}
	if err != nil || id <= 0 || uint64(id) > math.MaxUint {
		middleware.Abort(c, services.ErrUserNotFound)
		return
	}

	user, err := h.service.GetByID(requestContext(c), uint(id))
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindJSON(c, &body) {
		return
	}

	if !validate(c, &body, services.ErrNameEmailRequired) {
		return
	}

	user, err := h.service.Create(requestContext(c), services.CreateUserInput{
		Name:  body.Name,
		Email: body.Email,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, user, "User created successfully")
}
