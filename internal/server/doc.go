// Package server implements the core chat service for Parley.
//
// The implementation is organized into specialized files for the connection
// handle, the shared registry, the routing engine, the session lifecycle,
// the TCP and WebSocket listeners, and the operator console to keep the
// codebase maintainable and testable as the project grows.
package server
