package n8n

// nodeTypeToSkill maps n8n node types to the closest skill in the catalog.
// Unknown types fall back to the "default" entry.
var nodeTypeToSkill = map[string]string{
	// Triggers
	"n8n-nodes-base.webhook":         "trigger_webhook",
	"n8n-nodes-base.manualTrigger":   "trigger_manual",
	"n8n-nodes-base.scheduleTrigger": "trigger_schedule",
	"n8n-nodes-base.cron":            "trigger_schedule",

	// HTTP and web
	"n8n-nodes-base.httpRequest":       "http_request",
	"n8n-nodes-base.httpRequestAction": "http_request",

	// Code execution
	"n8n-nodes-base.code":           "python_sandbox",
	"n8n-nodes-base.executeCommand": "bash_commander",

	// File operations
	"n8n-nodes-base.readBinaryFile":  "file_manager",
	"n8n-nodes-base.writeBinaryFile": "file_manager",
	"n8n-nodes-base.readTextFile":    "file_manager",
	"n8n-nodes-base.writeTextFile":   "file_manager",

	// Databases
	"n8n-nodes-base.postgres": "database_operator",
	"n8n-nodes-base.mysql":    "database_operator",
	"n8n-nodes-base.sqlite":   "database_operator",
	"n8n-nodes-base.mongodb":  "database_operator",

	// AI and processing
	"n8n-nodes-base.openAi":    "dynamic_planner",
	"n8n-nodes-base.anthropic": "dynamic_planner",
	"n8n-nodes-base.langChain": "dynamic_planner",

	// Web scraping
	"n8n-nodes-base.htmlExtract": "data_extractor",

	// Data processing
	"n8n-nodes-base.set":      "data_extractor",
	"n8n-nodes-base.function": "python_sandbox",
	"n8n-nodes-base.switch":   "dynamic_planner",
	"n8n-nodes-base.if":       "dynamic_planner",
	"n8n-nodes-base.merge":    "data_extractor",
	"n8n-nodes-base.split":    "data_extractor",

	// Communication
	"n8n-nodes-base.slack":     "http_request",
	"n8n-nodes-base.discord":   "http_request",
	"n8n-nodes-base.telegram":  "http_request",
	"n8n-nodes-base.emailSend": "http_request",

	// Fallback
	"default": "http_request",
}

// parameterToSkill maps n8n parameter names onto skill parameter names.
// Unmapped names pass through unchanged.
var parameterToSkill = map[string]string{
	// HTTP request
	"url":            "url",
	"method":         "method",
	"headers":        "headers",
	"body":           "body",
	"authentication": "auth",

	// Code
	"jsCode":     "code",
	"pythonCode": "code",
	"code":       "code",

	// Files
	"fileName":    "path",
	"filePath":    "path",
	"fileContent": "content",
	"binaryData":  "content",

	// Databases
	"query":      "query",
	"sql":        "query",
	"parameters": "params",

	// Webhooks
	"httpMethod":   "method",
	"path":         "webhook_url",
	"responseData": "payload",
}
