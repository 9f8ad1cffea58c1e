package layout

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// SnapshotVersion is written into every encoded layout.
const SnapshotVersion = "1"

type snapshot struct {
	Version string  `yaml:"version"`
	Layout  *Layout `yaml:"layout"`
}

// Encode serializes a layout to YAML.
func Encode(l *Layout) ([]byte, error) {
	data, err := yaml.Marshal(snapshot{Version: SnapshotVersion, Layout: l})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal layout: %w", err)
	}

	return data, nil
}

// Decode parses a layout encoded with Encode.
func Decode(data []byte) (*Layout, error) {
	var s snapshot

	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse layout snapshot: %w", err)
	}

	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported layout snapshot version %q", s.Version)
	}

	if s.Layout == nil {
		return New(), nil
	}

	s.Layout.reindex()

	return s.Layout, nil
}
