package a2a

// Artifact is a durable output produced mid- or end-of-task (a plan, a
// result). Artifacts are owned exclusively by their task; re-uploading the
// same artifactId upserts it.
type Artifact struct {
	ArtifactID  string         `json:"artifactId"`
	TaskID      string         `json:"taskId"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Extensions  []string       `json:"extensions,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Validate checks the artifact envelope and every part.
func (a *Artifact) Validate() *ValidationError {
	if a.ArtifactID == "" {
		return newValidationError("artifact.artifactId", "non-empty string", "empty")
	}
	if len(a.Parts) == 0 {
		return newValidationError("artifact.parts", "at least one part", "empty")
	}
	for i, p := range a.Parts {
		if verr := p.Validate(); verr != nil {
			return verr.prefixed("artifact.parts", i)
		}
	}
	return nil
}
