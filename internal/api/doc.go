// Package api implements the JSON/SSE HTTP surface of the parley backend.
//
// Request flow:
//
//	Recovery → RequestID → Logging → CORS → RateLimit → Identity → Routes
//
// Health probes live on a top-level mux outside the middleware stack so
// orchestrator checks are never rate limited or logged per request.
//
// Endpoints:
//   - GET  /health, GET /ready
//   - GET  /api/v1/profiles                     model catalog (name + description)
//   - GET  /api/v1/starters                     fixed starter prompts
//   - POST /api/v1/sessions                     create a session
//   - GET  /api/v1/sessions/{id}                session state
//   - PUT  /api/v1/sessions/{id}/settings       update tunables
//   - POST /api/v1/sessions/{id}/files          stage attachments for the next turn
//   - POST /api/v1/chat/stream                  one conversation turn over SSE
package api
