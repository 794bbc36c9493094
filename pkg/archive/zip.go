// Package archive reads single entries out of in-memory zip archives
// without inflating the rest of the archive.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrNotFound is returned when no entry has the requested name.
var ErrNotFound = errors.New("entry not found")

var (
	localHeaderMagic  = []byte("PK\x03\x04")
	emptyArchiveMagic = []byte("PK\x05\x06")
)

// IsZip reports whether data starts with a zip signature.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, localHeaderMagic) || bytes.HasPrefix(data, emptyArchiveMagic)
}

// ReadEntry returns the contents of the file called name in the zip held
// by data. A root-level entry wins; otherwise the least nested entry with
// that base name is used, which covers archives zipped from their parent
// folder. Entries larger than limit bytes are rejected.
func ReadEntry(data []byte, name string, limit int64) ([]byte, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}

	f := find(r.File, name)
	if f == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return read(f, limit)
}

func find(files []*zip.File, name string) *zip.File {
	var best *zip.File
	bestDepth := -1
	for _, f := range files {
		if f.FileInfo().IsDir() || path.Base(f.Name) != name {
			continue
		}
		depth := strings.Count(strings.Trim(f.Name, "/"), "/")
		if best == nil || depth < bestDepth {
			best = f
			bestDepth = depth
		}
	}
	return best
}

func read(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("archive entry %s larger than %d bytes", f.Name, limit)
	}
	return data, nil
}
