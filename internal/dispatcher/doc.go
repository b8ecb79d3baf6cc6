// Package dispatcher classifies each incoming request's path and
// forwards it to the backend server responsible for the sharding key
// embedded in that path.
//
// # Overview
//
//	client ── ServeHTTP ──▶ findServerURL (sharded / global / unknown)
//	                          │
//	                          ▼
//	                    forward to upstream
//	                          │
//	              ┌───────────┴───────────┐
//	              ▼                       ▼
//	       enumerate path?          any other path
//	              │                       │
//	              ▼                       ▼
//	   buffer + enumpage.Rewrite    stream straight through
//
// Reserve paths are handled by a sibling package (internal/reserve),
// registered on their own exact mux pattern in cmd/apiproxy — the same
// way cmd/coordinator/main.go in the teacher registers each concern on
// its own mux.HandleFunc line rather than branching inside one handler.
package dispatcher
