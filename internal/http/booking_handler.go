package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-booking/internal/application"
)

type identityGate interface {
	Authenticate(ctx context.Context, apartment, pin string) (application.Identity, error)
	AuthenticateAndToggle(ctx context.Context, params application.LoginAndToggleParams) (application.ToggleResult, error)
}

// BookingHandler serves the login modal: identity checks and toggles.
type BookingHandler struct {
	gate      identityGate
	signals   *SignalRegistry
	responder responder
	logger    *slog.Logger
}

// NewBookingHandler constructs a booking handler. Toggles flip the caller's
// session signal when signals is non-nil.
func NewBookingHandler(gate identityGate, signals *SignalRegistry, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{gate: gate, signals: signals, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Verify checks an apartment and PIN without touching reservations.
func (h *BookingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.gate == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(ctx, "Verify", "error_kind", "bad_request").WarnContext(ctx, "failed to decode verify request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	apartment := strings.TrimSpace(req.Apartment)
	logger := h.log(ctx, "Verify", "apartment", apartment)

	identity, err := h.gate.Authenticate(ctx, apartment, req.PIN)
	if err != nil {
		logger.WarnContext(ctx, "identity rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "identity verified")
	h.responder.writeJSON(ctx, w, http.StatusOK, verifyResponse{Apartment: identity.Apartment})
}

// Toggle authenticates the caller and books or cancels the requested slot.
func (h *BookingHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.gate == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(ctx, "Toggle", "error_kind", "bad_request").WarnContext(ctx, "failed to decode toggle request", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	selection := application.Selection{Date: req.Date, Room: req.Room, TimeBlock: req.TimeBlock}
	params := application.LoginAndToggleParams{
		Apartment: req.Apartment,
		PIN:       req.PIN,
		Slot:      selection.Slot(),
	}
	if sessionID, ok := SessionIDFromContext(ctx); ok && h.signals != nil {
		params.Notifier = h.signals.For(sessionID)
	}

	logger := h.log(ctx, "Toggle",
		"date", req.Date,
		"room", req.Room,
		"time_block", req.TimeBlock,
	)

	result, err := h.gate.AuthenticateAndToggle(ctx, params)
	if err != nil {
		logger.ErrorContext(ctx, "toggle failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	resp := toggleResponse{
		Outcome:     string(result.Outcome),
		Reservation: toReservationDTO(result.Reservation),
	}

	status := http.StatusOK
	switch result.Outcome {
	case application.OutcomeCreated:
		status = http.StatusCreated
	case application.OutcomeRejected:
		status = http.StatusConflict
		resp.Message = statusMessage(http.StatusConflict)
	}

	logger.InfoContext(ctx, "toggle handled", "outcome", result.Outcome, "reservation_id", result.Reservation.ID)
	h.responder.writeJSON(ctx, w, status, resp)
}

type verifyRequest struct {
	Apartment string `json:"apartment"`
	PIN       string `json:"pin"`
}

type verifyResponse struct {
	Apartment string `json:"apartment"`
}

type toggleRequest struct {
	Apartment string `json:"apartment"`
	PIN       string `json:"pin"`
	Date      string `json:"date"`
	Room      string `json:"room"`
	TimeBlock string `json:"time_block"`
}

type toggleResponse struct {
	Outcome     string         `json:"outcome"`
	Reservation reservationDTO `json:"reservation"`
	Message     string         `json:"message,omitempty"`
}
