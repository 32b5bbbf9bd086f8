package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation-sync/internal/sync"
)

// Health reports liveness plus the engine's synchronization status,
// so monitors can tell a healthy instance from one serving stale
// state while the remote is unreachable.
func Health(engine *sync.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "ok"
		if engine.Degraded() {
			status = "degraded"
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":  status,
			"loading": engine.Loading(),
		})
	}
}
