// Package project identifies Scratch project containers.
// Classification looks only at container signatures and the project.json
// manifest; it never parses sprites, costumes or assets.
package project

// Type is the container format of a Scratch project.
type Type string

const (
	// TypeLegacy is the Scratch 1.x binary format (.sb).
	TypeLegacy Type = "legacy"
	// TypeSB2 is the Scratch 2 format (.sb2, or its bare project.json).
	TypeSB2 Type = "sb2"
	// TypeSB3 is the Scratch 3 format (.sb3, or its bare project.json).
	TypeSB3 Type = "sb3"
)

// String returns the string representation of the Type.
func (t Type) String() string {
	return string(t)
}

// Extension returns the file extension conventionally used for t.
func (t Type) Extension() string {
	switch t {
	case TypeLegacy:
		return ".sb"
	case TypeSB2:
		return ".sb2"
	default:
		return ".sb3"
	}
}

// Descriptor is a classified project.
// Immutable: Payload must not be modified once the descriptor is built.
type Descriptor struct {
	// Type is the detected container format.
	Type Type `json:"type"`
	// Title is a best-effort human title, empty when unknown.
	Title string `json:"title"`
	// Payload holds the project bytes: the file as loaded for binary
	// containers, the canonical JSON encoding for bare manifests.
	Payload []byte `json:"payload"`
}

// Bytes returns a copy of the payload that the caller may modify.
func (d *Descriptor) Bytes() []byte {
	return append([]byte(nil), d.Payload...)
}

// WithTitle returns a copy of d carrying title. The payload is shared.
func (d *Descriptor) WithTitle(title string) *Descriptor {
	return &Descriptor{Type: d.Type, Title: title, Payload: d.Payload}
}
