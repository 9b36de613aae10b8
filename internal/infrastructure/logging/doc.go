// Package logging provides structured logging for DoseBox Core.
//
// It is a thin wrapper around log/slog that applies the configured level,
// format, and output destination, and attaches the service name and version
// to every record.
package logging
