package http

import "github.com/nyuta01/agenthub/internal/config"

// AgentCard is the discovery document served at /.well-known/agent.json. It
// advertises the capability URIs an agent can currently execute, so peers
// can decide routing before sending a message.
type AgentCard struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Version      string   `json:"version"`
	Skills       []Skill  `json:"skills"`
	Extensions   []string `json:"extensions"`
	Capabilities struct {
		Streaming bool `json:"streaming"`
	} `json:"capabilities"`
}

// Skill describes a single capability of the agent.
type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	InputModes  []string `json:"inputModes"`
	OutputModes []string `json:"outputModes"`
}

// BuildAgentCard assembles the card from static agent identity and the
// capability URIs registered at startup. One skill per registered executor.
func BuildAgentCard(agent config.Agent, baseURL string, extensions []string) AgentCard {
	skills := make([]Skill, 0, len(extensions))
	for _, uri := range extensions {
		skills = append(skills, Skill{
			ID:          uri,
			Name:        uri,
			InputModes:  []string{"text", "data"},
			OutputModes: []string{"text", "data"},
		})
	}

	card := AgentCard{
		Name:        agent.Name,
		Description: agent.Description,
		URL:         baseURL,
		Version:     agent.Version,
		Skills:      skills,
		Extensions:  extensions,
	}
	card.Capabilities.Streaming = true
	return card
}
