// Package catalog seeds the standard skill set: three cognitive skills, three
// web skills, three execution skills, and two external integrations. Each
// skill honors the execution contract (inputs in, Result out, failures as
// data) and declares its own timeout and display metadata.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

// Register installs every standard skill into the registry.
func Register(ctx context.Context, reg *skill.Registry) {
	// Cognitive and AI reasoning
	reg.Register(ctx, func() skill.Skill { return &DynamicPlanner{} })
	reg.Register(ctx, func() skill.Skill { return &DataExtractor{} })
	reg.Register(ctx, func() skill.Skill { return &DocumentSummarizer{} })

	// Web and research
	reg.Register(ctx, func() skill.Skill { return &BrowserOperator{} })
	reg.Register(ctx, func() skill.Skill { return &WideResearcher{} })
	reg.Register(ctx, func() skill.Skill { return &HTTPRequest{} })

	// Execution and development
	reg.Register(ctx, func() skill.Skill { return &PythonSandbox{} })
	reg.Register(ctx, func() skill.Skill { return &BashCommander{} })
	reg.Register(ctx, func() skill.Skill { return &FileManager{} })

	// External integrations
	reg.Register(ctx, func() skill.Skill { return &N8NWebhook{} })
	reg.Register(ctx, func() skill.Skill { return &DatabaseOperator{} })
}

// recorder accumulates execution logs and timing for one skill run. The tag
// prefixes every log line so interleaved node logs stay attributable.
type recorder struct {
	tag   string
	start time.Time
	logs  []string
}

func newRecorder(tag string) *recorder {
	return &recorder{tag: tag, start: time.Now()}
}

func (r *recorder) logf(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf("[%s] ", r.tag)+fmt.Sprintf(format, args...))
}

func (r *recorder) elapsedMS() int64 {
	return time.Since(r.start).Milliseconds()
}

// success finalizes a successful run.
func (r *recorder) success(outputs map[string]any) *skill.Result {
	return &skill.Result{
		Status:     skill.StatusSuccess,
		Outputs:    outputs,
		Logs:       r.logs,
		DurationMS: r.elapsedMS(),
	}
}

// failure finalizes a failed run. Outputs may be nil.
func (r *recorder) failure(outputs map[string]any, errMsg string) *skill.Result {
	r.logf("Error: %s", errMsg)
	return &skill.Result{
		Status:     skill.StatusFailed,
		Outputs:    outputs,
		Error:      errMsg,
		Logs:       r.logs,
		DurationMS: r.elapsedMS(),
	}
}

// guard converts a panic inside a skill body into a failed Result so a buggy
// skill cannot take down the scheduler. Call via defer with the named result.
func (r *recorder) guard(res **skill.Result) {
	if p := recover(); p != nil {
		*res = r.failure(nil, fmt.Sprintf("%v", p))
	}
}

// Input accessors with defaults. Skills read loosely typed node parameters;
// these helpers centralize the type coercion.

func strInput(sc *skill.Context, name, def string) string {
	if v, ok := sc.Inputs[name].(string); ok {
		return v
	}
	return def
}

func intInput(sc *skill.Context, name string, def int) int {
	switch v := sc.Inputs[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

func boolInput(sc *skill.Context, name string, def bool) bool {
	if v, ok := sc.Inputs[name].(bool); ok {
		return v
	}
	return def
}

func mapInput(sc *skill.Context, name string) map[string]any {
	if v, ok := sc.Inputs[name].(map[string]any); ok {
		return v
	}
	return nil
}

func sliceInput(sc *skill.Context, name string) []any {
	if v, ok := sc.Inputs[name].([]any); ok {
		return v
	}
	return nil
}
