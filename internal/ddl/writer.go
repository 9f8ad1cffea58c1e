package ddl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// File permission constants.
const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// WriteScript writes statements as a ;-terminated script.
func WriteScript(w io.Writer, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := io.WriteString(w, strings.TrimSpace(stmt)+";\n"); err != nil {
			return err
		}
	}

	return nil
}

// WriteScriptFile writes statements to path, creating its directory if needed.
func WriteScriptFile(path string, stmts []string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var sb strings.Builder
	if err := WriteScript(&sb, stmts); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(sb.String()), filePerm); err != nil {
		return fmt.Errorf("writing script %s: %w", path, err)
	}

	return nil
}
