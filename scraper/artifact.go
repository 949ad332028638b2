package scraper

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeArtifact persists the extracted key-information fragment. An empty
// path disables the sink.
func writeArtifact(path, content string) error {
	if path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create artifact dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}
