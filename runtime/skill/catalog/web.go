package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

type (
	// BrowserOperator navigates websites, clicks elements, and reads content
	// dynamically. The current implementation simulates the browser session;
	// the contract (inputs, outputs, timeout) is final.
	BrowserOperator struct{}

	// WideResearcher performs multi-source web scraping and compiles
	// technical data into a unified output. Results are simulated.
	WideResearcher struct{}

	// HTTPRequest sends REST API calls (GET, POST, PUT, DELETE, PATCH).
	HTTPRequest struct {
		// Client overrides the HTTP client, mainly for tests. Nil means
		// http.DefaultClient.
		Client *http.Client
	}
)

func (*BrowserOperator) Definition() skill.Definition {
	return skill.Definition{
		ID:          "browser_operator",
		Name:        "Browser Operator",
		Description: "Navigates websites visually, clicks elements, and reads content dynamically.",
		Category:    skill.CategoryWeb,
		Parameters: []skill.Parameter{
			{Name: "url", Type: "string", Description: "URL to navigate to", Required: true},
			{Name: "actions", Type: "array", Description: "List of actions to perform (click, type, scroll, wait)", Default: []any{}},
			{Name: "extract_selector", Type: "string", Description: "CSS selector for content extraction"},
			{Name: "screenshot", Type: "boolean", Description: "Whether to take a screenshot", Default: false},
		},
		Outputs: []skill.Output{
			{Name: "content", Type: "string", Description: "Extracted page content"},
			{Name: "screenshot_path", Type: "string", Description: "Path to screenshot if taken"},
			{Name: "url", Type: "string", Description: "Final URL after navigation"},
		},
		Timeout: 120 * time.Second,
		Icon:    "🌐",
		Color:   "#22c55e",
	}
}

func (b *BrowserOperator) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Browser Operator")
	defer rec.guard(&res)

	rec.logf("Starting browser session for node %s", sc.NodeID)

	url := strInput(sc, "url", "")
	actions := sliceInput(sc, "actions")
	takeScreenshot := boolInput(sc, "screenshot", false)

	rec.logf("Navigating to: %s", url)

	content := fmt.Sprintf("Simulated content from %s", url)
	var screenshotPath any
	if takeScreenshot {
		screenshotPath = fmt.Sprintf("/tmp/screenshot_%s.png", sc.NodeID)
		rec.logf("Screenshot saved to %s", screenshotPath)
	}

	for _, a := range actions {
		if action, ok := a.(map[string]any); ok {
			rec.logf("Performing action: %v", action["type"])
		}
	}

	rec.logf("Completed in %dms", rec.elapsedMS())
	return rec.success(map[string]any{
		"content":         content,
		"screenshot_path": screenshotPath,
		"url":             url,
	})
}

func (*WideResearcher) Definition() skill.Definition {
	return skill.Definition{
		ID:          "wide_researcher",
		Name:        "Wide Researcher",
		Description: "Performs multi-source web scraping and compiles technical data into a unified output.",
		Category:    skill.CategoryWeb,
		Parameters: []skill.Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "sources", Type: "array", Description: "List of sources to search (web, docs, github)", Default: []any{"web"}},
			{Name: "max_results", Type: "integer", Description: "Maximum results per source", Default: 10},
		},
		Outputs: []skill.Output{
			{Name: "results", Type: "array", Description: "Compiled research results"},
			{Name: "summary", Type: "string", Description: "Summary of findings"},
		},
		Timeout: 180 * time.Second,
		Icon:    "🔍",
		Color:   "#3b82f6",
	}
}

func (w *WideResearcher) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Wide Researcher")
	defer rec.guard(&res)

	rec.logf("Starting research for node %s", sc.NodeID)

	query := strInput(sc, "query", "")
	sources := sliceInput(sc, "sources")
	if len(sources) == 0 {
		sources = []any{"web"}
	}
	maxResults := intInput(sc, "max_results", 10)

	rec.logf("Query: '%s' on sources: %v", query, sources)

	perSource := maxResults
	if perSource > 3 {
		perSource = 3
	}
	var results []any
	for _, s := range sources {
		source := fmt.Sprint(s)
		for i := 1; i <= perSource; i++ {
			results = append(results, map[string]any{
				"source":  source,
				"title":   fmt.Sprintf("Result %d for '%s' from %s", i, query, source),
				"url":     fmt.Sprintf("https://example.com/%s/%d", source, i),
				"snippet": fmt.Sprintf("This is a snippet from result %d...", i),
			})
		}
	}

	summary := fmt.Sprintf("Found %d results for '%s' across %d sources", len(results), query, len(sources))

	rec.logf("Completed in %dms", rec.elapsedMS())
	return rec.success(map[string]any{
		"results": results,
		"summary": summary,
	})
}

func (*HTTPRequest) Definition() skill.Definition {
	return skill.Definition{
		ID:          "http_request",
		Name:        "HTTP Request",
		Description: "Sends REST API calls (GET, POST, PUT, DELETE) similar to standard n8n nodes.",
		Category:    skill.CategoryWeb,
		Parameters: []skill.Parameter{
			{Name: "url", Type: "string", Description: "Request URL", Required: true},
			{Name: "method", Type: "string", Description: "HTTP method", Default: "GET", Options: []string{"GET", "POST", "PUT", "DELETE", "PATCH"}},
			{Name: "headers", Type: "object", Description: "Request headers", Default: map[string]any{}},
			{Name: "body", Type: "object", Description: "Request body (for POST/PUT/PATCH)"},
			{Name: "timeout", Type: "integer", Description: "Request timeout in seconds", Default: 30},
		},
		Outputs: []skill.Output{
			{Name: "status_code", Type: "integer", Description: "HTTP status code"},
			{Name: "response", Type: "object", Description: "Response body"},
			{Name: "headers", Type: "object", Description: "Response headers"},
		},
		Icon:  "📡",
		Color: "#ec4899",
	}
}

func (h *HTTPRequest) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("HTTP Request")
	defer rec.guard(&res)

	rec.logf("Starting request for node %s", sc.NodeID)

	url := strInput(sc, "url", "")
	method := strings.ToUpper(strInput(sc, "method", "GET"))
	headers := mapInput(sc, "headers")
	body := sc.Inputs["body"]
	timeout := intInput(sc, "timeout", 30)

	rec.logf("%s %s", method, url)

	statusCode, respBody, respHeaders, err := doRequest(ctx, h.Client, method, url, headers, body, time.Duration(timeout)*time.Second)
	if err != nil {
		return rec.failure(nil, err.Error())
	}

	rec.logf("Completed with status %d in %dms", statusCode, rec.elapsedMS())

	status := skill.StatusSuccess
	if statusCode < 200 || statusCode >= 300 {
		status = skill.StatusFailed
	}
	return &skill.Result{
		Status: status,
		Outputs: map[string]any{
			"status_code": statusCode,
			"response":    respBody,
			"headers":     respHeaders,
		},
		Logs:       rec.logs,
		DurationMS: rec.elapsedMS(),
	}
}

// doRequest performs one HTTP round trip with a JSON body for write methods
// and decodes the response as JSON when possible, falling back to the raw
// text. Shared with the n8n webhook skill.
func doRequest(ctx context.Context, client *http.Client, method, url string, headers map[string]any, body any, timeout time.Duration) (int, any, map[string]any, error) {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	writeMethod := method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
	if body != nil && writeMethod {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, err
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, fmt.Sprint(v))
	}
	if reqBody != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		decoded = string(raw)
	}

	respHeaders := make(map[string]any, len(resp.Header))
	for k := range resp.Header {
		respHeaders[k] = resp.Header.Get(k)
	}
	return resp.StatusCode, decoded, respHeaders, nil
}
