package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"trackersync/pkg/middleware"
	"trackersync/pkg/models"
	"trackersync/pkg/users"
)

// UserResponse is a resolved user with the flags trackers decide on.
type UserResponse struct {
	users.Profile
	Type        models.UserType `json:"type"`
	RegularUser bool            `json:"regular_user"`
	Managed     bool            `json:"managed"`
}

// UserHandler exposes user resolution for operators.
type UserHandler struct {
	Lookup users.Lookup
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(lookup users.Lookup) *UserHandler {
	return &UserHandler{Lookup: lookup}
}

// GetUser godoc
// @Summary      Resolve a user
// @Description  Resolves a user by type and id the same way trackers do
// @Tags         users
// @Produce      json
// @Param        type  path      string  true  "User type"  Enums(regular_user, manager, account_manager)
// @Param        id    path      int     true  "User ID"
// @Success      200   {object}  UserResponse
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /users/{type}/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userType, err := models.ParseUserType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := users.Resolve(c.Request.Context(), h.Lookup, userType, id)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		middleware.Logger(c).Error().Err(err).Int64("user_id", id).Msg("failed to resolve user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		Profile:     user.Details(),
		Type:        user.Type(),
		RegularUser: user.IsRegularUser(),
		Managed:     user.IsManaged(),
	})
}
