package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrMalformedInput is returned when the raw file exists but is not a JSON array.
var ErrMalformedInput = errors.New("malformed input")

// Artifact is one output file of a run.
type Artifact struct {
	Path string
	Data any
}

// ReadRaw loads the raw post file. A missing file yields an empty slice and no
// error. A file whose top level is not an array yields ErrMalformedInput.
func ReadRaw(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Raw input file not found, treating as empty", "path", path)
			return []any{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, path, err)
	}
	if items == nil {
		// "null" decodes without error.
		return []any{}, nil
	}
	return items, nil
}

// FileWriter writes artifacts to the local filesystem.
type FileWriter struct{}

// WriteAll writes every artifact or none. Each payload is encoded and staged
// to a temp file in the target directory first; renames only start once all
// temps are on disk.
func (FileWriter) WriteAll(artifacts []Artifact) error {
	return WriteAll(artifacts)
}

func WriteAll(artifacts []Artifact) error {
	type staged struct {
		tmp, dst string
	}
	pending := make([]staged, 0, len(artifacts))
	cleanup := func() {
		for _, s := range pending {
			os.Remove(s.tmp)
		}
	}

	for _, a := range artifacts {
		tmp, err := stage(a)
		if err != nil {
			cleanup()
			return err
		}
		pending = append(pending, staged{tmp: tmp, dst: a.Path})
	}

	for _, s := range pending {
		if err := checkReplaceable(s.dst); err != nil {
			cleanup()
			return err
		}
	}

	for i, s := range pending {
		if err := os.Rename(s.tmp, s.dst); err != nil {
			// Earlier renames have landed; drop the temps that have not.
			for _, rest := range pending[i:] {
				os.Remove(rest.tmp)
			}
			return fmt.Errorf("failed to move %s into place: %w", s.dst, err)
		}
	}
	return nil
}

// checkReplaceable fails when dst exists and is not a regular file, so a
// rename that would fail is caught before any artifact lands.
func checkReplaceable(dst string) error {
	info, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", dst, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cannot replace %s: not a regular file (%s)", dst, info.Mode().Type())
	}
	return nil
}

// WriteJSON writes a single artifact atomically.
func WriteJSON(path string, v any) error {
	return WriteAll([]Artifact{{Path: path, Data: v}})
}

func stage(a Artifact) (string, error) {
	data, err := json.MarshalIndent(a.Data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", a.Path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(a.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(a.Path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", a.Path, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to chmod %s: %w", tmp, err)
	}
	return tmp, nil
}

// RawFile reads raw posts from a path on disk.
type RawFile struct {
	Path string
}

func (f RawFile) ReadRaw() ([]any, error) {
	return ReadRaw(f.Path)
}
