package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"sbdl/pkg/project"
)

const maxNameLength = 100

// fileName picks "<title>.<ext>", falling back to the source's own name.
func fileName(desc *project.Descriptor, src source) string {
	name := sanitize(desc.Title)
	if name == "" {
		name = sanitize(src.baseName())
	}
	if name == "" {
		name = "project"
	}
	return name + extension(desc)
}

// extension keeps bare project.json payloads recognizable as JSON.
func extension(desc *project.Descriptor) string {
	if desc.Type != project.TypeLegacy && json.Valid(desc.Payload) {
		return ".json"
	}
	return desc.Type.Extension()
}

func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	s = strings.Trim(s, ". ")
	if r := []rune(s); len(r) > maxNameLength {
		s = string(r[:maxNameLength])
	}
	return s
}

// outputNames hands out distinct file names to the sources of one run, so
// two projects with the same title do not overwrite each other.
// Mutable
type outputNames struct {
	mu    sync.Mutex
	taken map[string]bool
}

func newOutputNames() *outputNames {
	return &outputNames{taken: make(map[string]bool)}
}

// reserve returns name, or "<stem> (N)<ext>" when name is already taken.
func (n *outputNames) reserve(name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; n.taken[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
	n.taken[strings.ToLower(candidate)] = true
	return candidate
}

// writeProject saves the payload as dir/name without leaving partial files.
func writeProject(dir, name string, desc *project.Descriptor) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".sbdl-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempFile := tmp.Name()

	if _, err := tmp.Write(desc.Payload); err != nil {
		tmp.Close()
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}

	target := filepath.Join(dir, name)
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return target, nil
}
