package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yassineqb/si-releves/internal/model"
	"github.com/yassineqb/si-releves/internal/repository"
)

// ClientHandler implements the /api/clients endpoints over subscriber
// dossiers.
type ClientHandler struct {
	Clients *repository.ClientRepo
	City    string // default city for new dossiers
}

func NewClientHandler(r *repository.ClientRepo, defaultCity string) *ClientHandler {
	return &ClientHandler{Clients: r, City: defaultCity}
}

// List returns dossiers, optionally filtered by a free-text search over
// name, CIN and phone, and by active status.
func (h *ClientHandler) List(c echo.Context) error {
	f := repository.ClientFilter{Search: strings.TrimSpace(c.QueryParam("search"))}
	if v := c.QueryParam("active"); v != "" {
		active := v == "true"
		f.Active = &active
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	clients, err := h.Clients.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, clients)
}

// Get returns one dossier by id.
func (h *ClientHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.Clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, cl)
}

type clientReq struct {
	LastName  *string `json:"nom"`
	FirstName *string `json:"prenom"`
	CIN       *string `json:"cin"`
	Phone     *string `json:"telephone"`
	Email     *string `json:"email"`
	Address   *string `json:"adresse_principale"`
	District  *string `json:"quartier"`
	City      *string `json:"ville"`
	Active    *bool   `json:"active"`
}

// Create registers a dossier. CIN is optional but unique.
func (h *ClientHandler) Create(c echo.Context) error {
	var req clientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if req.LastName == nil || strings.TrimSpace(*req.LastName) == "" ||
		req.FirstName == nil || strings.TrimSpace(*req.FirstName) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "nom and prenom are required"})
	}
	if req.Phone == nil || strings.TrimSpace(*req.Phone) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "telephone is required"})
	}
	if req.Address == nil || strings.TrimSpace(*req.Address) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "adresse_principale is required"})
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) != "" && !strings.Contains(*req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid email"})
	}

	city := h.City
	if req.City != nil && strings.TrimSpace(*req.City) != "" {
		city = strings.TrimSpace(*req.City)
	}
	cl := model.Client{
		LastName:  *req.LastName,
		FirstName: *req.FirstName,
		CIN:       req.CIN,
		Phone:     strings.TrimSpace(*req.Phone),
		Email:     req.Email,
		Address:   strings.TrimSpace(*req.Address),
		District:  req.District,
		City:      city,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Clients.Create(ctx, &cl); err != nil {
		if errors.Is(err, repository.ErrCINExists) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "cin already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "could not create client"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "client created",
		"client":  cl,
	})
}

// Update merges the request onto the stored dossier.
func (h *ClientHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req clientReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cl, err := h.Clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	if req.LastName != nil && strings.TrimSpace(*req.LastName) != "" {
		cl.LastName = strings.ToUpper(strings.TrimSpace(*req.LastName))
	}
	if req.FirstName != nil && strings.TrimSpace(*req.FirstName) != "" {
		cl.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.CIN != nil {
		cl.CIN = req.CIN
	}
	if req.Phone != nil && strings.TrimSpace(*req.Phone) != "" {
		cl.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		cl.Email = req.Email
	}
	if req.Address != nil && strings.TrimSpace(*req.Address) != "" {
		cl.Address = strings.TrimSpace(*req.Address)
	}
	if req.District != nil {
		cl.District = req.District
	}
	if req.City != nil && strings.TrimSpace(*req.City) != "" {
		cl.City = strings.TrimSpace(*req.City)
	}
	if req.Active != nil {
		cl.Active = *req.Active
	}

	if err := h.Clients.Update(ctx, &cl); err != nil {
		if errors.Is(err, repository.ErrCINExists) {
			return c.JSON(http.StatusConflict, echo.Map{"message": "cin already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "client updated",
		"client":  cl,
	})
}

// Delete deactivates a dossier (soft delete).
func (h *ClientHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Clients.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "client not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "client deactivated"})
}
