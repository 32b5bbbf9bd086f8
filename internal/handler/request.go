package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
	"github.com/iliyamo/venue-reservation-sync/internal/repository"
	"github.com/iliyamo/venue-reservation-sync/internal/sync"
)

// RequestHandler exposes the reservation-request surface: submission
// for any authenticated actor, approve/reject/delete for privileged
// ones, plus the pending-count read used by dashboards.
type RequestHandler struct {
	Engine *sync.Engine
}

func NewRequestHandler(e *sync.Engine) *RequestHandler {
	return &RequestHandler{Engine: e}
}

// List returns one partition's requests from the current snapshot.
func (h *RequestHandler) List(c echo.Context) error {
	p := model.Partition(c.QueryParam("partition"))
	if !p.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "partition must be A or B"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"requests": h.Engine.RequestsFor(p),
		"stale":    h.Engine.Degraded(),
	})
}

// Create submits a new request.  A resubmission inside the duplicate
// window returns the earlier record with 200 instead of creating a
// second one with 201; callers can tell by the status code.
func (h *RequestHandler) Create(c echo.Context) error {
	var body reservationReq
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := body.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	req := model.Request{
		Date:        res.Date,
		Partition:   res.Partition,
		Kind:        res.Kind,
		Slots:       res.Slots,
		Requester:   res.Requester,
		Category:    res.Category,
		AmountCents: res.AmountCents,
		Note:        res.Note,
	}
	created, fresh, err := h.Engine.CreateRequest(c.Request().Context(), req)
	if err != nil {
		return requestError(c, err)
	}
	status := http.StatusCreated
	if !fresh {
		status = http.StatusOK
	}
	return c.JSON(status, created)
}

// Approve promotes a pending request into a reservation.
func (h *RequestHandler) Approve(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	res, err := h.Engine.ApproveRequest(c.Request().Context(), id)
	if err != nil {
		return requestError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Reject flips a pending request to rejected.
func (h *RequestHandler) Reject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Engine.RejectRequest(c.Request().Context(), id); err != nil {
		return requestError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a request outright.
func (h *RequestHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Engine.DeleteRequest(c.Request().Context(), id); err != nil {
		return requestError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// PendingCount returns the maintained pending-request count.
func (h *RequestHandler) PendingCount(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"pending": h.Engine.PendingCount()})
}

func requestError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrAlreadyApproved),
		errors.Is(err, repository.ErrAlreadyRejected):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrPromotionCleanup):
		// The reservation exists; only the request cleanup is
		// outstanding.  502 tells the operator this is not a retry-
		// the-whole-thing situation.
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	case errors.Is(err, sync.ErrRemoteUnavailable):
		// Approvals and rejections need the authoritative datastore;
		// they are not captured for replay.  Retry when it is back.
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
