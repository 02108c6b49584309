// Package api defines the HTTP request and response shapes for the
// leafwise server. Handlers live in the handlers subpackage.
package api
