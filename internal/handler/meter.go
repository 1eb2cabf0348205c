package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yassineqb/si-releves/internal/config"
	"github.com/yassineqb/si-releves/internal/model"
	"github.com/yassineqb/si-releves/internal/repository"
	"github.com/yassineqb/si-releves/internal/service"
)

// MeterHandler implements the /api/compteurs endpoints.
type MeterHandler struct {
	Cfg    config.Config
	Meters *repository.MeterRepo
	Users  *repository.UserRepo
}

func NewMeterHandler(cfg config.Config, m *repository.MeterRepo, u *repository.UserRepo) *MeterHandler {
	return &MeterHandler{Cfg: cfg, Meters: m, Users: u}
}

// List returns meters matching the query filters (type_fluide, quartier,
// active, user_id). Subscribers only ever see their own meters regardless
// of the filters they send.
func (h *MeterHandler) List(c echo.Context) error {
	f := repository.MeterFilter{
		FluidType: strings.ToUpper(strings.TrimSpace(c.QueryParam("type_fluide"))),
		District:  strings.TrimSpace(c.QueryParam("quartier")),
	}
	if v := c.QueryParam("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}
	if v := c.QueryParam("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid user_id"})
		}
		f.UserID = id
	}
	if getRole(c) == model.RoleUser {
		uid, err := getUserID(c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
		}
		f.UserID = uid
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	meters, err := h.Meters.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, meters)
}

// Get returns one meter by its string id.
func (h *MeterHandler) Get(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Meters.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "meter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	if getRole(c) == model.RoleUser {
		uid, err := getUserID(c)
		if err != nil || m.UserID != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, m)
}

type createMeterReq struct {
	UserID      uint64     `json:"user_id"`
	FluidType   string     `json:"type_fluide"`
	Address     string     `json:"adresse"`
	District    *string    `json:"quartier"`
	City        *string    `json:"ville"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	InstalledAt *time.Time `json:"date_installation"`
}

// Create registers a meter for a subscriber. The id (COMP-YEAR-SEQ) is
// assigned by the repository; the owner must be an existing, active account
// with role USER.
func (h *MeterHandler) Create(c echo.Context) error {
	var req createMeterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	fluid := strings.ToUpper(strings.TrimSpace(req.FluidType))
	if !model.ValidFluidType(fluid) {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "type_fluide must be WATER or ELECTRICITY"})
	}
	if strings.TrimSpace(req.Address) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "adresse is required"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "user_id is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	owner, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	if owner.Role != model.RoleUser || !owner.Active {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "meters can only be assigned to active USER accounts"})
	}

	city := h.Cfg.DefaultCity
	if req.City != nil && strings.TrimSpace(*req.City) != "" {
		city = strings.TrimSpace(*req.City)
	}
	m := model.Meter{
		UserID:      req.UserID,
		FluidType:   fluid,
		Address:     strings.TrimSpace(req.Address),
		District:    req.District,
		City:        city,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		InstalledAt: req.InstalledAt,
	}
	if err := h.Meters.Create(ctx, &m); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "meter id allocation conflict, retry"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "could not create meter"})
	}

	service.PublishMeterRegistered(c.Request().Context(), m)

	return c.JSON(http.StatusCreated, echo.Map{
		"success":  true,
		"message":  "meter created",
		"compteur": m,
	})
}

type updateMeterReq struct {
	FluidType   *string    `json:"type_fluide"`
	Address     *string    `json:"adresse"`
	District    *string    `json:"quartier"`
	City        *string    `json:"ville"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	InstalledAt *time.Time `json:"date_installation"`
	Active      *bool      `json:"active"`
}

// Update merges the request onto the stored meter. The meter id and owner
// are immutable.
func (h *MeterHandler) Update(c echo.Context) error {
	var req updateMeterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Meters.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "meter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	if req.FluidType != nil {
		fluid := strings.ToUpper(strings.TrimSpace(*req.FluidType))
		if !model.ValidFluidType(fluid) {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "type_fluide must be WATER or ELECTRICITY"})
		}
		m.FluidType = fluid
	}
	if req.Address != nil && strings.TrimSpace(*req.Address) != "" {
		m.Address = strings.TrimSpace(*req.Address)
	}
	if req.District != nil {
		m.District = req.District
	}
	if req.City != nil && strings.TrimSpace(*req.City) != "" {
		m.City = strings.TrimSpace(*req.City)
	}
	if req.Latitude != nil {
		m.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		m.Longitude = req.Longitude
	}
	if req.InstalledAt != nil {
		m.InstalledAt = req.InstalledAt
	}
	if req.Active != nil {
		m.Active = *req.Active
	}

	if err := h.Meters.Update(ctx, &m); err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "meter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "meter updated",
		"compteur": m,
	})
}

// Delete deactivates a meter. Rows are never removed so historical readings
// keep their reference.
func (h *MeterHandler) Delete(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Meters.Deactivate(ctx, c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "meter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "meter deactivated"})
}

// Stats returns registry-wide counts.
func (h *MeterHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Meters.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, s)
}
