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
	"github.com/yassineqb/si-releves/internal/service"
)

// ReadingHandler implements the /api/releves endpoints over the reading
// ledger.
type ReadingHandler struct {
	Readings *repository.ReadingRepo
	Users    *repository.UserRepo
}

func NewReadingHandler(r *repository.ReadingRepo, u *repository.UserRepo) *ReadingHandler {
	return &ReadingHandler{Readings: r, Users: u}
}

// List returns readings matching the query filters (compteur_id, agent_id,
// anomalie, date_debut, date_fin), newest observation first, with meter and
// agent summaries attached.
func (h *ReadingHandler) List(c echo.Context) error {
	f := repository.ReadingFilter{
		MeterID: strings.TrimSpace(c.QueryParam("compteur_id")),
	}
	if v := c.QueryParam("agent_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid agent_id"})
		}
		f.AgentID = id
	}
	if v := c.QueryParam("anomalie"); v != "" {
		anomaly := v == "true"
		f.Anomaly = &anomaly
	}
	if v := c.QueryParam("date_debut"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid date_debut"})
		}
		f.From = &t
	}
	if v := c.QueryParam("date_fin"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid date_fin"})
		}
		f.To = &t
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	readings, err := h.Readings.List(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, readings)
}

// Get returns one reading with its meter and agent summaries.
func (h *ReadingHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rd, err := h.Readings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrReadingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reading not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, rd)
}

type createReadingReq struct {
	MeterID      string     `json:"compteur_id"`
	AgentID      uint64     `json:"agent_id"`
	CurrentIndex *float64   `json:"index_actuel"`
	ReadAt       *time.Time `json:"date_heure"`
	Anomaly      bool       `json:"anomalie"`
	Comment      *string    `json:"commentaire"`
	Photo        *string    `json:"photo"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
}

// Create records a reading. index_precedent and consommation are derived by
// the repository inside a per-meter serialized transaction; whatever the
// caller sends for those fields is ignored. The observation time defaults
// to now and may be backdated.
func (h *ReadingHandler) Create(c echo.Context) error {
	var req createReadingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if strings.TrimSpace(req.MeterID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "compteur_id is required"})
	}
	if req.AgentID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "agent_id is required"})
	}
	if req.CurrentIndex == nil || *req.CurrentIndex < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "index_actuel must be a non-negative number"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The meter is checked inside the ledger transaction; the agent is
	// resolved here so a bad agent_id never opens a transaction at all.
	if _, err := h.Users.GetByID(ctx, req.AgentID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "agent not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}

	rd := model.Reading{
		MeterID:      strings.TrimSpace(req.MeterID),
		AgentID:      req.AgentID,
		CurrentIndex: *req.CurrentIndex,
		Anomaly:      req.Anomaly,
		Comment:      req.Comment,
		Photo:        req.Photo,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}
	if req.ReadAt != nil {
		rd.ReadAt = req.ReadAt.UTC()
	}

	if err := h.Readings.Create(ctx, &rd); err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "meter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "could not create reading"})
	}

	// Reload with meter/agent summaries for display.
	full, err := h.Readings.GetByID(ctx, rd.ID)
	if err != nil {
		full = rd
	}

	service.PublishReadingRecorded(c.Request().Context(), full)

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": "reading created",
		"releve":  full,
	})
}

type updateReadingReq struct {
	CurrentIndex *float64 `json:"index_actuel"`
	Anomaly      *bool    `json:"anomalie"`
	Comment      *string  `json:"commentaire"`
	Photo        *string  `json:"photo"`
}

// Update applies an administrative correction. Changing index_actuel
// recomputes consommation against the stored index_precedent.
func (h *ReadingHandler) Update(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req updateReadingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid body"})
	}
	if req.CurrentIndex != nil && *req.CurrentIndex < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "index_actuel must be a non-negative number"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rd, err := h.Readings.Amend(ctx, id, repository.ReadingPatch{
		CurrentIndex: req.CurrentIndex,
		Anomaly:      req.Anomaly,
		Comment:      req.Comment,
		Photo:        req.Photo,
	})
	if err != nil {
		if errors.Is(err, repository.ErrReadingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reading not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "reading updated",
		"releve":  rd,
	})
}

// Delete removes a reading. Later readings keep their recorded baselines.
func (h *ReadingHandler) Delete(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Readings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrReadingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reading not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "reading deleted"})
}

// Stats returns ledger-wide figures.
func (h *ReadingHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Readings.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "server error"})
	}
	return c.JSON(http.StatusOK, s)
}

// parseDateParam accepts RFC3339 timestamps or plain dates (2006-01-02).
func parseDateParam(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	return t.UTC(), err
}
