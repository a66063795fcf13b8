package catalog

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

type (
	// DynamicPlanner evaluates upstream node outputs and decides the next
	// workflow path based on real-time context.
	DynamicPlanner struct{}

	// DataExtractor extracts structured data from unstructured text or HTML.
	DataExtractor struct{}

	// DocumentSummarizer summarizes long-form reports or logs generated
	// during the workflow.
	DocumentSummarizer struct{}
)

func (*DynamicPlanner) Definition() skill.Definition {
	return skill.Definition{
		ID:          "dynamic_planner",
		Name:        "Dynamic Planner",
		Description: "Evaluates previous node outputs and decides the next workflow path based on real-time context.",
		Category:    skill.CategoryCognitive,
		Parameters: []skill.Parameter{
			{Name: "context", Type: "object", Description: "Previous node outputs to analyze", Required: true},
			{Name: "decision_criteria", Type: "string", Description: "Criteria for making the decision", Default: "Choose the optimal path based on the context"},
			{Name: "available_paths", Type: "array", Description: "List of possible paths to choose from", Required: true},
		},
		Outputs: []skill.Output{
			{Name: "selected_path", Type: "string", Description: "The selected workflow path"},
			{Name: "reasoning", Type: "string", Description: "Explanation of the decision"},
		},
		Icon:  "🧠",
		Color: "#8b5cf6",
	}
}

func (p *DynamicPlanner) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Dynamic Planner")
	defer rec.guard(&res)

	rec.logf("Starting execution for node %s", sc.NodeID)

	previous := mapInput(sc, "context")
	if previous == nil {
		previous = sc.PreviousOutputs
	}
	paths := sliceInput(sc, "available_paths")

	rec.logf("Analyzing %d previous outputs", len(previous))
	rec.logf("Available paths: %v", paths)

	selected := "default"
	if len(paths) > 0 {
		if s, ok := paths[0].(string); ok {
			selected = s
		}
	}
	reasoning := fmt.Sprintf("Selected '%s' based on available options", selected)

	// Route to recovery paths when an upstream output carries an error or a
	// failed status. Keys are visited in sorted order so the decision is
	// deterministic.
	ids := make([]string, 0, len(previous))
	for id := range previous {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out, ok := previous[id].(map[string]any)
		if !ok {
			continue
		}
		if errVal, ok := out["error"]; ok && errVal != nil && errVal != "" {
			selected = "error_handler"
			reasoning = fmt.Sprintf("Error detected in %s, routing to error handler", id)
			break
		}
		if out["status"] == "failed" {
			selected = "retry_path"
			reasoning = fmt.Sprintf("Failure detected in %s, routing to retry", id)
			break
		}
	}

	rec.logf("Completed in %dms", rec.elapsedMS())
	return rec.success(map[string]any{
		"selected_path": selected,
		"reasoning":     reasoning,
	})
}

func (*DataExtractor) Definition() skill.Definition {
	return skill.Definition{
		ID:          "data_extractor",
		Name:        "Data Extractor",
		Description: "Extracts structured JSON data from unstructured text or HTML.",
		Category:    skill.CategoryCognitive,
		Parameters: []skill.Parameter{
			{Name: "input_text", Type: "string", Description: "Text or HTML to extract data from", Required: true},
			{Name: "extraction_schema", Type: "object", Description: "JSON schema defining the structure to extract", Required: true},
			{Name: "input_type", Type: "string", Description: "Type of input (text, html, markdown)", Default: "text", Options: []string{"text", "html", "markdown"}},
		},
		Outputs: []skill.Output{
			{Name: "extracted_data", Type: "object", Description: "Extracted structured data"},
			{Name: "confidence", Type: "number", Description: "Confidence score of extraction"},
		},
		Icon:  "📊",
		Color: "#06b6d4",
	}
}

func (e *DataExtractor) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Data Extractor")
	defer rec.guard(&res)

	rec.logf("Starting extraction for node %s", sc.NodeID)

	inputText := strInput(sc, "input_text", "")
	schema := mapInput(sc, "extraction_schema")
	inputType := strInput(sc, "input_type", "text")

	rec.logf("Processing %s input (%d chars)", inputType, len(inputText))

	extracted := make(map[string]any)
	for field, rawDef := range schema {
		def, ok := rawDef.(map[string]any)
		if !ok {
			continue
		}
		pattern, _ := def["pattern"].(string)
		if pattern == "" {
			extracted[field] = nil
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return rec.failure(nil, err.Error())
		}
		matches := re.FindAllString(inputText, -1)
		switch len(matches) {
		case 0:
			extracted[field] = nil
		case 1:
			extracted[field] = matches[0]
		default:
			extracted[field] = matches
		}
	}

	confidence := 0.0
	if len(extracted) > 0 {
		confidence = 1.0
	}

	rec.logf("Extracted %d fields in %dms", len(extracted), rec.elapsedMS())
	return rec.success(map[string]any{
		"extracted_data": extracted,
		"confidence":     confidence,
	})
}

func (*DocumentSummarizer) Definition() skill.Definition {
	return skill.Definition{
		ID:          "document_summarizer",
		Name:        "Document Summarizer",
		Description: "Summarizes long-form reports or logs generated during the workflow.",
		Category:    skill.CategoryCognitive,
		Parameters: []skill.Parameter{
			{Name: "document", Type: "string", Description: "Document text to summarize", Required: true},
			{Name: "max_length", Type: "integer", Description: "Maximum length of summary in words", Default: 200},
			{Name: "style", Type: "string", Description: "Summary style", Default: "concise", Options: []string{"concise", "detailed", "bullet_points"}},
		},
		Outputs: []skill.Output{
			{Name: "summary", Type: "string", Description: "Generated summary"},
			{Name: "key_points", Type: "array", Description: "Key points extracted"},
		},
		Icon:  "📝",
		Color: "#f59e0b",
	}
}

// keywords that mark a sentence as a key point candidate.
var importantKeywords = []string{"important", "key", "critical", "main", "essential", "significant"}

func (s *DocumentSummarizer) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Document Summarizer")
	defer rec.guard(&res)

	rec.logf("Starting summarization for node %s", sc.NodeID)

	document := strInput(sc, "document", "")
	maxLength := intInput(sc, "max_length", 200)

	rec.logf("Processing document (%d chars)", len(document))

	words := strings.Fields(document)
	summaryWords := words
	if len(words) > maxLength {
		summaryWords = words[:maxLength]
	}
	summary := strings.Join(summaryWords, " ")
	if len(words) > maxLength {
		summary += "..."
	}

	sentences := strings.Split(document, ". ")
	var keyPoints []any
	limit := len(sentences)
	if limit > 10 {
		limit = 10
	}
	for _, sentence := range sentences[:limit] {
		lower := strings.ToLower(sentence)
		for _, kw := range importantKeywords {
			if strings.Contains(lower, kw) {
				keyPoints = append(keyPoints, strings.TrimSpace(sentence))
				break
			}
		}
	}
	if len(keyPoints) == 0 {
		n := len(sentences)
		if n > 3 {
			n = 3
		}
		for _, sentence := range sentences[:n] {
			keyPoints = append(keyPoints, sentence)
		}
	}

	rec.logf("Generated summary in %dms", rec.elapsedMS())
	return rec.success(map[string]any{
		"summary":    summary,
		"key_points": keyPoints,
	})
}
