package user

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/userlist/internal/domain"
	"github.com/simp-lee/userlist/internal/pkg"
)

// UserHandler serves the /users collection in the json-server wire format:
// records are sent bare and list totals travel in X-Total-Count.
type UserHandler struct {
	svc         domain.UserService
	maxPageSize int
}

// NewUserHandler creates a new UserHandler with the given service.
// maxPageSize caps _limit; values <= 0 mean pkg.MaxLimit.
func NewUserHandler(svc domain.UserService, maxPageSize int) *UserHandler {
	return &UserHandler{svc: svc, maxPageSize: maxPageSize}
}

// Create handles POST /users.
func (h *UserHandler) Create(c *gin.Context) {
	var req UserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), req.Fields())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), paramID(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// List handles GET /users.
func (h *UserHandler) List(c *gin.Context) {
	q := pkg.ParseListQuery(c, h.maxPageSize)

	result, err := h.svc.ListUsers(c.Request.Context(), q)
	if err != nil {
		pkg.Error(c, err)
		return
	}

	pkg.List(c, result.Records, result.Total)
}

// Update handles PUT /users/:id.
func (h *UserHandler) Update(c *gin.Context) {
	var req UserRequest
	if !pkg.BindAndValidate(c, &req) {
		return
	}

	user, err := h.svc.UpdateUser(c.Request.Context(), paramID(c), req.Fields())
	if err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteUser(c.Request.Context(), paramID(c)); err != nil {
		pkg.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func paramID(c *gin.Context) domain.ID {
	return domain.ID(strings.TrimSpace(c.Param("id")))
}
