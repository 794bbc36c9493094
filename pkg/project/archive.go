package project

import (
	"errors"
	"fmt"

	"sbdl/pkg/archive"
	"sbdl/pkg/common"
)

const (
	manifestName = "project.json"
	// maxManifestSize bounds how much of project.json is inflated.
	maxManifestSize = 64 << 20
)

// classifyArchive reads only the project.json entry of a zipped project.
// The payload stays the original compressed bytes.
func classifyArchive(data []byte) (*Descriptor, error) {
	manifest, err := archive.ReadEntry(data, manifestName, maxManifestSize)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, &common.UnrecognizedFormatError{Format: "zip archive without " + manifestName}
	}
	if err != nil {
		return nil, &common.UnrecognizedFormatError{Format: fmt.Sprintf("zip archive: %v", err)}
	}

	doc, err := decodeManifest(manifest)
	if err != nil {
		return nil, &common.UnrecognizedFormatError{Format: "zip archive with invalid " + manifestName}
	}

	typ, ok := manifestType(doc)
	if !ok {
		return nil, &common.UnrecognizedFormatError{Format: "zip archive with unknown " + manifestName}
	}

	return &Descriptor{
		Type:    typ,
		Title:   extractTitle(doc),
		Payload: data,
	}, nil
}
