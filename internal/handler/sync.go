package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation-sync/internal/sync"
)

// SyncHandler exposes the maintenance surface of the engine: forced
// reloads, count recomputation and the special-date overrides.
type SyncHandler struct {
	Engine *sync.Engine
}

func NewSyncHandler(e *sync.Engine) *SyncHandler {
	return &SyncHandler{Engine: e}
}

// Refresh reloads the full state from the remote datastore.  With
// ?silent=true the loading flag stays untouched, for background
// resyncs triggered by dashboards.
func (h *SyncHandler) Refresh(c echo.Context) error {
	var err error
	if c.QueryParam("silent") == "true" {
		err = h.Engine.RefreshSilent(c.Request().Context())
	} else {
		err = h.Engine.Refresh(c.Request().Context())
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "remote unavailable"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Recompute rebuilds the pending count and repairs the mirror.
func (h *SyncHandler) Recompute(c echo.Context) error {
	h.Engine.RecomputeCount(c.Request().Context())
	return c.JSON(http.StatusOK, echo.Map{"pending": h.Engine.PendingCount()})
}

// SpecialDates returns the calendar overrides from the snapshot.
func (h *SyncHandler) SpecialDates(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"special_dates": h.Engine.SpecialDates()})
}
