package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 54 * time.Second
	// Clients only ever send close frames and pongs.
	maxMessageSize = 512
)

type calendarService interface {
	Month(ctx context.Context, reference time.Time) (application.Grid, error)
	Today() time.Time
	Settings() application.CalendarSettings
}

// CalendarHandler serves the calendar grid and the per-session change signal.
type CalendarHandler struct {
	service   calendarService
	signals   *SignalRegistry
	upgrader  websocket.Upgrader
	responder responder
	logger    *slog.Logger

	closeOnce sync.Once
	closing   chan struct{}
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(service calendarService, signals *SignalRegistry, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{
		service:   service,
		signals:   signals,
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		responder: newResponder(base),
		logger:    base,
		closing:   make(chan struct{}),
	}
}

// Close ends every open change stream. Register it with
// http.Server.RegisterOnShutdown; hijacked connections are not tracked by
// Shutdown.
func (h *CalendarHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Month renders the four-week grid around the reference query parameter.
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	settings := h.service.Settings()

	reference := h.service.Today()
	if raw := strings.TrimSpace(r.URL.Query().Get("reference")); raw != "" {
		parsed, err := time.ParseInLocation(application.DateLayout, raw, settings.Location)
		if err != nil {
			h.log(ctx, "Month", "error_kind", "bad_request").WarnContext(ctx, "invalid calendar reference", "reference", raw)
			h.responder.writeError(ctx, w, http.StatusBadRequest, errInvalidReference)
			return
		}
		reference = parsed
	}

	logger := h.log(ctx, "Month", "reference", reference.Format(application.DateLayout))

	grid, err := h.service.Month(ctx, reference)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load calendar", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, toCalendarResponse(grid, settings, h.service.Today()))
}

// Signal reports the caller's change signal.
func (h *CalendarHandler) Signal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := SessionIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSession)
		return
	}
	if h.signals == nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, errSignalUnavailable)
		return
	}

	h.responder.writeJSON(ctx, w, http.StatusOK, h.signals.For(sessionID).State())
}

// Changes upgrades to a websocket and pushes the caller's change signal
// after every flip. The current state is sent first.
func (h *CalendarHandler) Changes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := SessionIDFromContext(ctx)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusBadRequest, errMissingSession)
		return
	}
	if h.signals == nil {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, errSignalUnavailable)
		return
	}

	logger := h.log(ctx, "Changes")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	signal, release := h.signals.Watch(sessionID)
	defer release()
	updates, unsubscribe := signal.Subscribe()
	defer unsubscribe()

	logger.InfoContext(ctx, "change stream opened")
	defer logger.InfoContext(ctx, "change stream closed")

	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(ctx, conn, signal.State(), updates, closed, h.closing)
}

// readPump drains the connection so control frames are processed and reports
// when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, initial application.SignalState, updates <-chan application.SignalState, closed, shutdown <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	for {
		select {
		case state, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-shutdown:
			closeGoingAway(conn)
			return
		case <-ctx.Done():
			closeGoingAway(conn)
			return
		}
	}
}

func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
}

type calendarResponse struct {
	Window    windowDTO `json:"window"`
	WeekStart string    `json:"week_start"`
	Today     string    `json:"today"`
	Rooms     []string  `json:"rooms"`
	Days      []dayDTO  `json:"days"`
}

type windowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dayDTO struct {
	Date         string           `json:"date"`
	Weekday      string           `json:"weekday"`
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Room      string `json:"room"`
	TimeBlock string `json:"time_block"`
	Owner     string `json:"owner,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toCalendarResponse(grid application.Grid, settings application.CalendarSettings, today time.Time) calendarResponse {
	days := make([]dayDTO, 0, len(grid.Days))
	for _, day := range grid.Days {
		reservations := make([]reservationDTO, 0, len(day.Reservations))
		for _, reservation := range day.Reservations {
			reservations = append(reservations, toReservationDTO(reservation))
		}
		days = append(days, dayDTO{
			Date:         day.Date,
			Weekday:      strings.ToLower(day.Weekday.String()),
			Reservations: reservations,
		})
	}

	rooms := settings.Rooms
	if rooms == nil {
		rooms = []string{}
	}

	return calendarResponse{
		Window:    windowDTO{Start: grid.Window.Start, End: grid.Window.End},
		WeekStart: strings.ToLower(grid.WeekStart.String()),
		Today:     today.Format(application.DateLayout),
		Rooms:     rooms,
		Days:      days,
	}
}

func toReservationDTO(reservation application.Reservation) reservationDTO {
	dto := reservationDTO{
		ID:        reservation.ID,
		Date:      reservation.Date,
		Room:      reservation.Room,
		TimeBlock: reservation.TimeBlock,
		Owner:     reservation.Owner,
	}
	if !reservation.CreatedAt.IsZero() {
		dto.CreatedAt = reservation.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
