package orchestration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bootkit/internal/config"
)

// ErrListUnsupported is returned for backends that cannot be enumerated
// from the local filesystem.
var ErrListUnsupported = errors.New("listing instances requires a file:// backend")

// ListStacks returns the names of instances with local state. Every
// instance owns a directory below the profile's file backend.
func ListStacks(cfg *config.Profile) ([]string, error) {
	if !strings.HasPrefix(cfg.PulumiBackend, "file://") {
		return nil, ErrListUnsupported
	}
	root, err := localBackendDir(strings.TrimSuffix(cfg.PulumiBackend, "/"))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), ".pulumi")); err == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
