// Package handlers implements the HTTP handlers for the leafwise server:
// session lifecycle, turn submission with optional image upload, and
// health endpoints.
package handlers
