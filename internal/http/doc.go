// Package http exposes the booking calendar over HTTP.
//
// The router exposes the following endpoints:
//   - GET /calendar?reference=YYYY-MM-DD: the four-week grid around reference
//     (today when omitted). Response: {"window","week_start","days":[...]} with
//     each day carrying its reservations.
//   - POST /identity/verify: checks an apartment and PIN. Body:
//     {"apartment","pin"}. Response: {"apartment"} or 401.
//   - POST /bookings/toggle: books a free slot or cancels the caller's own
//     reservation. Body: {"apartment","pin","date","room","time_block"}.
//     Response: {"outcome","reservation"}; 409 when another apartment holds
//     the slot.
//   - GET /calendar/signal: the caller's change signal {"changed","version"}.
//   - GET /calendar/changes: websocket stream of change signal flips.
//   - GET /healthz: store ping.
//
// The booking_session cookie only scopes the change signal to one browser.
// It is not an authentication token; every toggle carries its own PIN.
package http
