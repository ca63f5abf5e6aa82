// Package logging provides structured logging for the Interfono bridge.
//
// It wraps log/slog so every entry is machine-parsable JSON in production
// and readable text in development, with the service name and version as
// default fields. Never log broker credentials or tokens.
package logging
