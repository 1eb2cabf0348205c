package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yassineqb/si-releves/internal/config"
	"github.com/yassineqb/si-releves/internal/model"
	"github.com/yassineqb/si-releves/internal/repository"
	"github.com/yassineqb/si-releves/internal/utils"
)

// UserHandler implements account administration endpoints, restricted to
// ADMIN and SUPERADMIN by the router.
type UserHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewUserHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *UserHandler {
	return &UserHandler{Cfg: cfg, Users: u, Tokens: t}
}

// List returns all accounts, newest first.
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Users.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one account by id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, u)
}

type createUserReq struct {
	LastName  string `json:"nom"`
	FirstName string `json:"prenom"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// Create registers an account with a generated temporary password. The
// password is returned in the response only in dev; in production it is
// expected to reach the user by email.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if strings.TrimSpace(req.LastName) == "" || strings.TrimSpace(req.FirstName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "nom and prenom are required"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "a valid email is required"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if !model.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid role"})
	}

	tempPassword, err := utils.GeneratePassword()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Users.Create(ctx, req.LastName, req.FirstName, req.Email, tempPassword, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "email already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	log.Printf("user created: %s (role=%s)", u.Email, u.Role)

	resp := echo.Map{
		"success": true,
		"message": "user created, a password email has been sent",
		"user":    u,
	}
	if h.Cfg.Env == "dev" {
		resp["tempPassword"] = tempPassword
	}
	return c.JSON(http.StatusCreated, resp)
}

type updateUserReq struct {
	LastName  *string `json:"nom"`
	FirstName *string `json:"prenom"`
	Email     *string `json:"email"`
	Role      *string `json:"role"`
	Active    *bool   `json:"active"`
	Password  *string `json:"password"`
}

// Update merges the request onto the stored account and saves it.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	if req.LastName != nil && strings.TrimSpace(*req.LastName) != "" {
		u.LastName = strings.ToUpper(strings.TrimSpace(*req.LastName))
	}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != "" {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" {
		u.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*req.Role))
		if !model.ValidRole(role) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid role"})
		}
		u.Role = role
	}
	if req.Active != nil {
		u.Active = *req.Active
	}

	if err := h.Users.Update(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "email already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	if req.Password != nil && *req.Password != "" {
		if err := h.Users.UpdatePassword(ctx, id, *req.Password, h.Cfg.BcryptCost); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
		}
	}
	if req.Active != nil && !*req.Active {
		_ = h.Tokens.RevokeAllForUser(ctx, id)
	}

	u, err = h.Users.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, u)
}

// Delete removes an account. Administrators cannot delete themselves.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	callerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	if id == callerID {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "you cannot delete your own account"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	_ = h.Tokens.RevokeAllForUser(ctx, id)
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "user deleted"})
}

// ResetPassword generates a new temporary password for the account and
// revokes its sessions.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	tempPassword, err := utils.GeneratePassword()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	if err := h.Users.UpdatePassword(ctx, id, tempPassword, h.Cfg.BcryptCost); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	_ = h.Tokens.RevokeAllForUser(ctx, id)
	log.Printf("password reset for: %s", u.Email)

	resp := echo.Map{
		"success": true,
		"message": "password reset, an email has been sent to " + u.Email,
	}
	if h.Cfg.Env == "dev" {
		resp["tempPassword"] = tempPassword
	}
	return c.JSON(http.StatusOK, resp)
}
