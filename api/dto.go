package api

import "github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"

// skillDefinition is the wire form of a skill definition. Timeouts are
// expressed in seconds.
type skillDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    skill.Category    `json:"category"`
	Parameters  []skill.Parameter `json:"parameters"`
	Outputs     []skill.Output    `json:"outputs"`
	Timeout     float64           `json:"timeout"`
	RetryCount  int               `json:"retry_count"`
	Icon        string            `json:"icon,omitempty"`
	Color       string            `json:"color,omitempty"`
}

func toSkillDefinition(d skill.Definition) skillDefinition {
	return skillDefinition{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Parameters:  d.Parameters,
		Outputs:     d.Outputs,
		Timeout:     d.EffectiveTimeout().Seconds(),
		RetryCount:  d.RetryCount,
		Icon:        d.Icon,
		Color:       d.Color,
	}
}
