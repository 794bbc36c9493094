package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"sbdl/pkg/archive"
	"sbdl/pkg/common"
)

var (
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}
	legacyMagic = []byte("ScratchV0")
)

// detector pairs a cheap signature check with the extraction that builds
// the descriptor once the signature matched.
type detector struct {
	name    string
	match   func(data []byte) bool
	extract func(data []byte) (*Descriptor, error)
}

// detectors are tried in order; the first match decides the outcome.
var detectors = []detector{
	{name: "json", match: isJSON, extract: classifyJSON},
	{name: "legacy", match: isLegacy, extract: classifyLegacy},
	{name: "archive", match: archive.IsZip, extract: classifyArchive},
}

// Classify determines the container format of data.
// JSON manifests are re-encoded canonically, so equal documents give equal
// payloads whatever their formatting. Legacy and archive payloads are data
// itself; callers must not modify it afterwards.
func Classify(data []byte) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, &common.UnrecognizedFormatError{Format: "empty buffer"}
	}

	for _, d := range detectors {
		if !d.match(data) {
			continue
		}
		desc, err := d.extract(data)
		if err != nil {
			return nil, err
		}
		slog.Debug("Classified project", "detector", d.name, "type", desc.Type, "bytes", len(data))
		return desc, nil
	}

	return nil, &common.UnrecognizedFormatError{Format: describeSignature(data)}
}

// ClassifyDocument classifies an already decoded project.json document.
// Strings, byte slices and json.RawMessage are taken as JSON text; any other
// value is encoded first.
func ClassifyDocument(doc any) (*Descriptor, error) {
	data, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}
	if !isJSON(data) {
		return nil, &common.ParseError{Err: fmt.Errorf("document is not valid JSON")}
	}
	return classifyJSON(data)
}

func encodeDocument(doc any) ([]byte, error) {
	switch v := doc.(type) {
	case nil:
		return nil, &common.UnrecognizedFormatError{Format: "null document"}
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	}

	data, err := encodeCanonical(doc)
	if err != nil {
		return nil, &common.UnrecognizedFormatError{Format: fmt.Sprintf("unencodable document %T", doc)}
	}
	return data, nil
}

// encodeCanonical writes v as compact JSON with sorted object keys and no
// HTML escaping.
func encodeCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func isJSON(data []byte) bool {
	return json.Valid(bytes.TrimPrefix(data, utf8BOM))
}

func classifyJSON(data []byte) (*Descriptor, error) {
	doc, err := decodeManifest(data)
	if err != nil {
		return nil, &common.UnrecognizedFormatError{Format: "JSON that is not an object"}
	}

	typ, ok := manifestType(doc)
	if !ok {
		return nil, &common.UnrecognizedFormatError{Format: "JSON without targets or objName"}
	}

	// Buffers, strings and decoded documents all converge on the same bytes.
	payload, err := encodeCanonical(doc)
	if err != nil {
		return nil, &common.UnrecognizedFormatError{Format: fmt.Sprintf("unencodable manifest: %v", err)}
	}

	return &Descriptor{
		Type:    typ,
		Title:   extractTitle(doc),
		Payload: payload,
	}, nil
}

func decodeManifest(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("manifest is null")
	}
	return doc, nil
}

// manifestType tells project.json generations apart: Scratch 3 keeps a
// targets array at the top level, Scratch 2 describes the stage itself.
func manifestType(doc map[string]any) (Type, bool) {
	if _, ok := doc["targets"].([]any); ok {
		return TypeSB3, true
	}
	if _, ok := doc["objName"]; ok {
		return TypeSB2, true
	}
	return "", false
}

// isLegacy matches the Scratch 1.x header: "ScratchV01" or "ScratchV02".
func isLegacy(data []byte) bool {
	if len(data) < len(legacyMagic)+1 || !bytes.HasPrefix(data, legacyMagic) {
		return false
	}
	v := data[len(legacyMagic)]
	return v == '1' || v == '2'
}

func classifyLegacy(data []byte) (*Descriptor, error) {
	return &Descriptor{
		Type:    TypeLegacy,
		Payload: data,
	}, nil
}

func describeSignature(data []byte) string {
	n := min(len(data), 8)
	return fmt.Sprintf("unknown signature %x (%d bytes)", data[:n], len(data))
}
