package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/pauljones0/post-heatmap/internal/validator"
)

// ReadAccounts returns the handles listed in path, one per line. Blank lines
// and lines starting with # are ignored, a leading @ is stripped and
// duplicates are dropped. A missing file means no accounts.
func ReadAccounts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Accounts file not found", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer f.Close()

	v := validator.New()
	seen := make(map[string]bool)
	var handles []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		handle := strings.TrimPrefix(line, "@")
		if err := v.ValidateVar(handle, "handle"); err != nil {
			slog.Warn("Skipping invalid handle", "handle", line)
			continue
		}
		key := strings.ToLower(handle)
		if seen[key] {
			continue
		}
		seen[key] = true
		handles = append(handles, handle)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return handles, nil
}
