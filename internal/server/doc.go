// Package server manages HTTP server lifecycle: non-blocking start,
// graceful shutdown on signal, and asynchronous error reporting. This
// package is internal and should not be imported by external projects.
package server
