// Package a2a defines the wire vocabulary for the agent-to-agent task
// protocol: parts, messages, tasks, artifacts, and the events that announce
// their changes. Every value crossing a process boundary is validated here
// before it reaches business logic.
package a2a

import (
	"encoding/json"
	"fmt"
)

// Part kind discriminants.
const (
	PartKindText = "text"
	PartKindFile = "file"
	PartKindData = "data"
)

// FileContent carries a file payload as either inline bytes or a URI.
// Exactly one of Bytes or URI must be set.
type FileContent struct {
	Bytes    string `json:"bytes,omitempty"` // base64-encoded payload
	URI      string `json:"uri,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Part is one typed fragment of a Message or Artifact, discriminated by
// Kind. Parts are immutable once constructed.
type Part struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	File *FileContent   `json:"file,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// NewTextPart returns a text part.
func NewTextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// NewDataPart returns a structured data part.
func NewDataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// NewFilePart returns a file part.
func NewFilePart(file FileContent) Part {
	return Part{Kind: PartKindFile, File: &file}
}

// Validate checks the discriminant and the kind-specific payload.
func (p Part) Validate() *ValidationError {
	switch p.Kind {
	case PartKindText:
		return nil
	case PartKindFile:
		if p.File == nil {
			return newValidationError("part.file", "file object", "nil")
		}
		if (p.File.Bytes == "") == (p.File.URI == "") {
			return newValidationError("part.file", "exactly one of bytes or uri", describeFile(p.File))
		}
		return nil
	case PartKindData:
		if p.Data == nil {
			return newValidationError("part.data", "structured object", "nil")
		}
		return nil
	default:
		return newValidationError("part.kind", `one of "text", "file", "data"`, fmt.Sprintf("%q", p.Kind))
	}
}

// UnmarshalJSON enforces the discriminant at decode time so malformed parts
// are rejected before construction.
func (p *Part) UnmarshalJSON(data []byte) error {
	type alias Part
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Part(raw)
	if verr := p.Validate(); verr != nil {
		return verr
	}
	return nil
}

func describeFile(f *FileContent) string {
	switch {
	case f.Bytes != "" && f.URI != "":
		return "both bytes and uri"
	default:
		return "neither bytes nor uri"
	}
}
