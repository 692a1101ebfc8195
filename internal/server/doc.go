// Package server provides HTTP server setup and initialization for the
// frameport host daemon.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (CORS, rate limiting, recovery, metrics)
//   - WebSocket transport bus for host page and child contexts
//   - Component definition seeding from manifest files
//   - Embedding engine wiring (DOM boundary, peer directory, stores)
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger (production or development)
//  3. Create the transport bus and seed component definitions
//  4. Wire the engine to the bus-backed DOM boundary
//  5. Setup HTTP routes and middleware
//  6. Start HTTP server
//  7. Graceful shutdown on signal: unload watchdogs fire, instances close
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
