package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation-sync/internal/model"
	"github.com/iliyamo/venue-reservation-sync/internal/repository"
	"github.com/iliyamo/venue-reservation-sync/internal/sync"
)

// ReservationHandler exposes the privileged reservation surface.  All
// mutations go through the engine so offline capture, conflict
// resolution and feed publishing apply uniformly.
type ReservationHandler struct {
	Engine *sync.Engine
}

func NewReservationHandler(e *sync.Engine) *ReservationHandler {
	return &ReservationHandler{Engine: e}
}

type reservationReq struct {
	Date        string `json:"date"` // YYYY-MM-DD
	Partition   string `json:"partition"`
	Kind        string `json:"kind"`
	Slots       []int  `json:"slots"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Category    string `json:"category"`
	Paid        bool   `json:"paid"`
	AmountCents uint32 `json:"amount_cents"`
	Note        string `json:"note"`
}

func (r reservationReq) toModel() (model.Reservation, error) {
	date, err := time.Parse("2006-01-02", r.Date)
	if err != nil {
		return model.Reservation{}, err
	}
	return model.Reservation{
		Date:      date,
		Partition: model.Partition(r.Partition),
		Kind:      model.AllocationKind(r.Kind),
		Slots:     r.Slots,
		Requester: model.Requester{
			Name:  r.Name,
			Phone: r.Phone,
			Email: r.Email,
		},
		Category:    r.Category,
		Paid:        r.Paid,
		AmountCents: r.AmountCents,
		Note:        r.Note,
	}, nil
}

// List returns the reservations of one partition from the current
// snapshot.  Reads never touch the remote datastore.
func (h *ReservationHandler) List(c echo.Context) error {
	p := model.Partition(c.QueryParam("partition"))
	if !p.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "partition must be A or B"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservations": h.Engine.ReservationsFor(p),
		"stale":        h.Engine.Degraded(),
	})
}

// Create performs a privileged direct creation.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	created, err := h.Engine.CreateReservation(c.Request().Context(), res)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update rewrites a reservation.  A concurrent remote edit is
// arbitrated by the engine's conflict strategy before the write.
func (h *ReservationHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req reservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, want YYYY-MM-DD"})
	}
	res.ID = id
	updated, err := h.Engine.UpdateReservation(c.Request().Context(), res)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete removes a reservation.
func (h *ReservationHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if err := h.Engine.DeleteReservation(c.Request().Context(), id); err != nil {
		return reservationError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type markPaidReq struct {
	AmountCents uint32 `json:"amount_cents"`
}

// MarkPaid flips the payment status to paid; an approved reservation
// becomes confirmed as a side effect.
func (h *ReservationHandler) MarkPaid(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req markPaidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	updated, err := h.Engine.MarkPaid(c.Request().Context(), id, req.AmountCents)
	if err != nil {
		return reservationError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func reservationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, sync.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, sync.ErrManualConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
