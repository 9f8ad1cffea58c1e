package logging

import (
	"log/slog"
)

// WithImport creates a logger tagged with an import id.
//
// Example:
//
//	log := logging.WithImport(importID)
//	log.Info("import applied", "tables", n)
func WithImport(importID string) *slog.Logger {
	return GetLogger().With("import_id", importID)
}

// WithClass creates a logger with class context.
func WithClass(class string) *slog.Logger {
	return GetLogger().With("class", class)
}

// WithTable creates a logger with table context.
func WithTable(table string) *slog.Logger {
	return GetLogger().With("table", table)
}

// WithStage creates a logger for one stage of the mapping pipeline.
func WithStage(stage string) *slog.Logger {
	return GetLogger().With("stage", stage)
}
