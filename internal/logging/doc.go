// Package logging provides the process-wide structured logger.
//
// The logger wraps log/slog. Init configures level, format and output once at
// startup; GetLogger falls back to info-level text on stderr when Init was
// never called, so packages and tests can log without setup.
//
// Context helpers attach the identifiers used across an import:
//
//	logging.WithImport(id).Info("import applied")
//	logging.WithStage("allocate").Debug("table created", "table", name)
package logging
