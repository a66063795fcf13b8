// Package skill defines the execution contract every workflow node implements:
// a Definition describing the skill's identity, parameters, and limits, and an
// Execute method that turns inputs into a Result. Skills never return Go
// errors for domain failures; a failure is a Result with StatusFailed so the
// scheduler can apply its retry policy uniformly.
package skill

import (
	"context"
	"fmt"
	"time"
)

type (
	// Category groups skills for discovery and palette display.
	Category string

	// Status is the lifecycle status of a skill execution.
	Status string

	// Parameter describes one input a skill accepts.
	Parameter struct {
		Name        string   `json:"name"`
		Type        string   `json:"type"`
		Description string   `json:"description"`
		Required    bool     `json:"required"`
		Default     any      `json:"default,omitempty"`
		Options     []string `json:"options,omitempty"`
	}

	// Output describes one value a skill produces.
	Output struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	}

	// Definition is the complete description of a skill: identity, category,
	// parameter and output schemas, execution limits, and display metadata.
	Definition struct {
		ID          string      `json:"id"`
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Category    Category    `json:"category"`
		Parameters  []Parameter `json:"parameters"`
		Outputs     []Output    `json:"outputs"`
		// Timeout bounds a single execution attempt. Zero means DefaultTimeout.
		Timeout time.Duration `json:"-"`
		// RetryCount is the number of retries after a failed attempt.
		RetryCount int    `json:"retry_count"`
		Icon       string `json:"icon"`
		Color      string `json:"color"`
	}

	// Context carries everything a skill needs to execute: the identity of
	// the node being run, its synthesized inputs, the outputs of upstream
	// nodes keyed by node ID, and ambient configuration.
	Context struct {
		WorkflowID      string
		NodeID          string
		Inputs          map[string]any
		PreviousOutputs map[string]any
		Config          map[string]any
		SandboxPath     string
		EnvVars         map[string]string
	}

	// Result is the outcome of one skill execution attempt.
	Result struct {
		Status     Status         `json:"status"`
		Outputs    map[string]any `json:"outputs"`
		Error      string         `json:"error,omitempty"`
		Logs       []string       `json:"logs,omitempty"`
		DurationMS int64          `json:"duration_ms"`
	}

	// Skill is implemented by every executable unit. Execute must honor ctx
	// cancellation and report domain failures through the Result status, not
	// through panics or Go errors.
	Skill interface {
		Definition() Definition
		Execute(ctx context.Context, sc *Context) *Result
	}

	// Factory constructs a fresh skill instance. The registry stores
	// factories rather than instances so concurrent node executions never
	// share skill state.
	Factory func() Skill
)

// Skill categories, using the wire values served by the catalog endpoints.
const (
	CategoryCognitive   Category = "cognitive_ai_reasoning"
	CategoryWeb         Category = "web_research"
	CategoryExecution   Category = "execution_development"
	CategoryIntegration Category = "external_integrations_mcp"
)

// Execution statuses.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Default execution limits applied when a Definition leaves them unset.
const (
	DefaultTimeout    = 5 * time.Minute
	DefaultRetryCount = 0
)

// EffectiveTimeout returns the per-attempt timeout, falling back to
// DefaultTimeout when the definition does not set one.
func (d Definition) EffectiveTimeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultTimeout
	}
	return d.Timeout
}

// ValidateInputs checks the given inputs against the definition's parameter
// schema and returns one message per violation. An empty slice means valid.
func (d Definition) ValidateInputs(inputs map[string]any) []string {
	var errs []string
	for _, p := range d.Parameters {
		v, present := inputs[p.Name]
		if p.Required && !present {
			errs = append(errs, fmt.Sprintf("Missing required parameter: %s", p.Name))
			continue
		}
		if present && len(p.Options) > 0 {
			s, ok := v.(string)
			if !ok || !containsString(p.Options, s) {
				errs = append(errs, fmt.Sprintf("Invalid value for %s. Must be one of: %v", p.Name, p.Options))
			}
		}
	}
	return errs
}

func containsString(opts []string, s string) bool {
	for _, o := range opts {
		if o == s {
			return true
		}
	}
	return false
}
