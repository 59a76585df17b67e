// Package http provides the HTTP handlers and middleware for the time
// tracking API.
//
// The router exposes the following endpoints:
//   - POST /api/sessions: issues a session token. Body: {"email","password"}.
//     Response: {"token","expires_at"} with the token also set as a
//     `session_token` cookie.
//   - DELETE /api/sessions/current: revokes the caller's session token taken
//     from the Authorization header or session cookie. Returns 204 and clears
//     the cookie.
//   - POST /api/time/auto-breaks: runs one automatic break insertion batch.
//     Authorized by the shared scheduler secret as a bearer token or by an
//     administrator session; it is the only route besides sign-in that is not
//     behind the session middleware.
//   - GET/POST /api/time/entries, PUT/DELETE /api/time/entries/{id}: time
//     entry management exchanging the `entryRequest`/`entryResponse` payloads
//     defined in entry_handler.go.
//   - POST /api/time/start, POST /api/time/stop: live timer control for the
//     authenticated user.
//   - GET/POST /api/users, PUT /api/users/{id}/break-setting,
//     PUT /api/users/{id}/status, DELETE /api/users/{id}: administrator
//     controlled account, break configuration, and account status endpoints.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
