package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sbdl/pkg/downloader"
	"sbdl/pkg/loader"
	"sbdl/pkg/project"
	"sbdl/pkg/scratchapi"
)

type sourceKind int

const (
	sourceID sourceKind = iota
	sourceURL
	sourceFile
)

// source is one command line argument resolved to a loader entry point.
type source struct {
	arg  string
	kind sourceKind
	// ref is the project ID, URL or file path.
	ref string
}

func parseSource(arg string) source {
	if id, ok := scratchapi.ParseID(arg); ok {
		return source{arg: arg, kind: sourceID, ref: id}
	}
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return source{arg: arg, kind: sourceURL, ref: arg}
	}
	return source{arg: arg, kind: sourceFile, ref: arg}
}

// baseName is the file name used when the project has no title.
func (s source) baseName() string {
	switch s.kind {
	case sourceID:
		return s.ref
	case sourceURL:
		name := s.ref
		if i := strings.IndexAny(name, "?#"); i >= 0 {
			name = name[:i]
		}
		name = strings.TrimSuffix(name, "/")
		return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	default:
		return strings.TrimSuffix(filepath.Base(s.ref), filepath.Ext(s.ref))
	}
}

func (s source) load(ctx context.Context, l *loader.Loader, onProgress downloader.ProgressFunc) (*project.Descriptor, error) {
	switch s.kind {
	case sourceID:
		return l.FromID(ctx, s.ref, onProgress)
	case sourceURL:
		return l.FromURL(ctx, s.ref, onProgress)
	}

	data, err := os.ReadFile(s.ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.ref, err)
	}
	if strings.EqualFold(filepath.Ext(s.ref), ".json") {
		return l.FromJSON(ctx, string(data))
	}
	return l.FromBuffer(ctx, data)
}
