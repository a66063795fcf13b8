package catalog

import (
	"context"
	"net/http"
	"strings"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/skill"
)

type (
	// N8NWebhook sends or receives payload data to and from external n8n
	// instances.
	N8NWebhook struct {
		// Client overrides the HTTP client, mainly for tests. Nil means
		// http.DefaultClient.
		Client *http.Client
	}

	// DatabaseOperator queries or writes workflow state to a relational
	// database. The current implementation simulates the round trip; the
	// contract (inputs, outputs) is final.
	DatabaseOperator struct{}
)

func (*N8NWebhook) Definition() skill.Definition {
	return skill.Definition{
		ID:          "n8n_webhook",
		Name:        "n8n Webhook Trigger/Action",
		Description: "Sends or receives payload data to/from external n8n instances.",
		Category:    skill.CategoryIntegration,
		Parameters: []skill.Parameter{
			{Name: "webhook_url", Type: "string", Description: "n8n webhook URL", Required: true},
			{Name: "method", Type: "string", Description: "HTTP method", Default: "POST", Options: []string{"GET", "POST"}},
			{Name: "payload", Type: "object", Description: "Data to send", Default: map[string]any{}},
			{Name: "headers", Type: "object", Description: "Additional headers", Default: map[string]any{}},
		},
		Outputs: []skill.Output{
			{Name: "response", Type: "object", Description: "Response from n8n"},
			{Name: "status_code", Type: "integer", Description: "HTTP status code"},
		},
		Icon:  "🔗",
		Color: "#ff6d5a",
	}
}

func (n *N8NWebhook) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("n8n Webhook")
	defer rec.guard(&res)

	rec.logf("Starting for node %s", sc.NodeID)

	webhookURL := strInput(sc, "webhook_url", "")
	method := strings.ToUpper(strInput(sc, "method", "POST"))
	payload := mapInput(sc, "payload")
	headers := mapInput(sc, "headers")

	rec.logf("%s %s", method, webhookURL)

	var body any
	if method == http.MethodPost {
		body = payload
	}
	statusCode, respBody, _, err := doRequest(ctx, n.Client, method, webhookURL, headers, body, skill.DefaultTimeout)
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
			"response":    respBody,
			"status_code": statusCode,
		},
		Logs:       rec.logs,
		DurationMS: rec.elapsedMS(),
	}
}

func (*DatabaseOperator) Definition() skill.Definition {
	return skill.Definition{
		ID:          "database_operator",
		Name:        "Database Operator",
		Description: "Connects to local/remote PostgreSQL, MySQL, or SQLite to query or write workflow states.",
		Category:    skill.CategoryIntegration,
		Parameters: []skill.Parameter{
			{Name: "connection_string", Type: "string", Description: "Database connection string", Required: true},
			{Name: "query", Type: "string", Description: "SQL query to execute", Required: true},
			{Name: "params", Type: "array", Description: "Query parameters", Default: []any{}},
			{Name: "database_type", Type: "string", Description: "Type of database", Default: "sqlite", Options: []string{"sqlite", "postgresql", "mysql"}},
		},
		Outputs: []skill.Output{
			{Name: "rows", Type: "array", Description: "Query results"},
			{Name: "row_count", Type: "integer", Description: "Number of affected rows"},
		},
		Icon:  "🗄️",
		Color: "#14b8a6",
	}
}

func (d *DatabaseOperator) Execute(ctx context.Context, sc *skill.Context) (res *skill.Result) {
	rec := newRecorder("Database Operator")
	defer rec.guard(&res)

	rec.logf("Starting for node %s", sc.NodeID)

	query := strInput(sc, "query", "")
	databaseType := strInput(sc, "database_type", "sqlite")

	rec.logf("Executing query on %s", databaseType)

	// Simulated round trip. Reads report one sample row; writes report one
	// affected row.
	var rows []any
	rowCount := 0
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") {
		rows = []any{map[string]any{"id": 1, "data": "sample"}}
		rowCount = len(rows)
	} else {
		rowCount = 1
	}

	rec.logf("Completed in %dms, %d rows affected", rec.elapsedMS(), rowCount)
	return rec.success(map[string]any{
		"rows":      rows,
		"row_count": rowCount,
	})
}
