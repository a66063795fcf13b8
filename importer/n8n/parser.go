// Package n8n imports n8n workflow JSON exports: it checks the document
// shape, maps n8n node types and parameters onto catalog skills, extracts
// routing conditions from IF and SWITCH nodes, and resolves the name-keyed
// connection lists into directed edges of the internal DAG model.
package n8n

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sadadonline17-oss/ai-manus-unified/runtime/workflow"
)

// documentSchema is the JSON Schema the foreign document must satisfy before
// conversion. Deliberately loose: n8n exports vary across versions, so only
// the load-bearing shape is pinned.
const documentSchema = `{
	"type": "object",
	"required": ["nodes"],
	"properties": {
		"name": {"type": "string"},
		"nodes": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"type": {"type": "string"}
				}
			}
		},
		"connections": {"type": "object"},
		"settings": {"type": "object"}
	}
}`

// Parser converts n8n workflow documents into internal workflows.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes and shape-checks raw n8n JSON, then converts it. The
// returned workflow is not yet validated against the structural rules; run
// workflow.Validate before persisting or executing it.
func (p *Parser) Parse(raw []byte) (*workflow.Workflow, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode n8n document: %w", err)
	}
	if err := validateShape(doc); err != nil {
		return nil, fmt.Errorf("invalid n8n document: %w", err)
	}
	return p.Convert(doc), nil
}

// Convert maps a decoded n8n document onto the internal workflow model.
// Conversion is total: unknown node types fall back to the default skill and
// missing identifiers are generated.
func (p *Parser) Convert(doc map[string]any) *workflow.Workflow {
	workflowID := stringOr(doc["id"], generateID())
	name := stringOr(doc["name"], "Imported Workflow")

	description := ""
	if meta, ok := doc["meta"].(map[string]any); ok {
		description = stringOr(meta["description"], "")
	}

	var (
		nodes    []*workflow.Node
		triggers []string
		// n8n connections reference nodes by display name.
		nodeIDByName = make(map[string]string)
	)
	if rawNodes, ok := doc["nodes"].([]any); ok {
		for _, rn := range rawNodes {
			raw, ok := rn.(map[string]any)
			if !ok {
				continue
			}
			node := p.convertNode(raw)
			nodes = append(nodes, node)

			key := node.ID
			if n, ok := raw["name"].(string); ok {
				key = n
			}
			nodeIDByName[key] = node.ID

			if node.Type == workflow.NodeTypeTrigger {
				triggers = append(triggers, node.ID)
			}
		}
	}

	connections, _ := doc["connections"].(map[string]any)
	edges := p.convertConnections(connections, nodeIDByName)

	for _, e := range edges {
		for _, n := range nodes {
			if n.ID == e.Source {
				n.Connections = append(n.Connections, e.Target)
			}
		}
	}

	settings, _ := doc["settings"].(map[string]any)

	return &workflow.Workflow{
		ID:          "manus_" + workflowID,
		Name:        name,
		Description: description,
		Nodes:       nodes,
		Edges:       edges,
		Triggers:    triggers,
		Settings:    settings,
	}
}

func (p *Parser) convertNode(raw map[string]any) *workflow.Node {
	originalID := stringOr(raw["id"], generateID())
	name := stringOr(raw["name"], "Unnamed Node")
	n8nType := stringOr(raw["type"], "")

	nodeType, skillID := classifyNodeType(n8nType)

	rawParams, _ := raw["parameters"].(map[string]any)
	params := mapParameters(rawParams, n8nType)

	var conds []workflow.Condition
	if nodeType == workflow.NodeTypeCondition {
		conds = extractConditions(rawParams)
	}

	return &workflow.Node{
		ID:           "node_" + originalID,
		Name:         name,
		Type:         nodeType,
		SkillID:      skillID,
		Parameters:   params,
		Position:     parsePosition(raw["position"]),
		Conditions:   conds,
		OriginalType: n8nType,
	}
}

// classifyNodeType determines the node role and skill binding. Substring
// classification runs before the static table so trigger, condition, and
// merge nodes keep their roles even for unknown vendor types.
func classifyNodeType(n8nType string) (workflow.NodeType, string) {
	lower := strings.ToLower(n8nType)

	for _, marker := range []string{"trigger", "webhook", "cron", "schedule"} {
		if strings.Contains(lower, marker) {
			if strings.Contains(lower, "webhook") {
				return workflow.NodeTypeTrigger, "trigger_webhook"
			}
			return workflow.NodeTypeTrigger, "trigger_manual"
		}
	}
	for _, marker := range []string{"if", "switch", "condition"} {
		if strings.Contains(lower, marker) {
			return workflow.NodeTypeCondition, "dynamic_planner"
		}
	}
	if strings.Contains(lower, "merge") {
		return workflow.NodeTypeMerge, "data_extractor"
	}

	skillID, ok := nodeTypeToSkill[n8nType]
	if !ok {
		skillID = nodeTypeToSkill["default"]
	}
	return workflow.NodeTypeSkill, skillID
}

// mapParameters renames n8n parameters to skill parameter names and applies
// the HTTP and code special cases.
func mapParameters(rawParams map[string]any, n8nType string) map[string]any {
	mapped := make(map[string]any, len(rawParams))
	for key, value := range rawParams {
		target, ok := parameterToSkill[key]
		if !ok {
			target = key
		}
		mapped[target] = value
	}

	lower := strings.ToLower(n8nType)
	if strings.Contains(n8nType, "httpRequest") || strings.Contains(lower, "http") {
		if _, ok := mapped["method"]; !ok {
			mapped["method"] = "GET"
		}
		if _, ok := mapped["url"]; !ok {
			if path, ok := rawParams["path"]; ok {
				mapped["url"] = path
			}
		}
	}
	if strings.Contains(lower, "code") || strings.Contains(lower, "function") {
		code := stringOr(rawParams["jsCode"], "")
		if code == "" {
			code = stringOr(rawParams["pythonCode"], "")
		}
		if code == "" {
			code = stringOr(rawParams["code"], "")
		}
		mapped["code"] = code
	}

	return mapped
}

// extractConditions collects routing rules from IF node condition lists and
// SWITCH node rule lists. IF conditions carry their own output index; SWITCH
// rules route to the output matching their position.
func extractConditions(rawParams map[string]any) []workflow.Condition {
	var conds []workflow.Condition

	if list, ok := rawParams["conditions"].([]any); ok {
		for _, rc := range list {
			c, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			conds = append(conds, workflow.Condition{
				Type:   stringOr(c["condition"], "equals"),
				Left:   valueOr(c["leftValue"], ""),
				Right:  valueOr(c["rightValue"], ""),
				Output: intOr(c["output"], 0),
			})
		}
	}

	if list, ok := rawParams["rules"].([]any); ok {
		for i, rr := range list {
			rule, ok := rr.(map[string]any)
			if !ok {
				continue
			}
			conds = append(conds, workflow.Condition{
				Type:   stringOr(rule["condition"], "equals"),
				Left:   valueOr(rule["leftValue"], ""),
				Right:  valueOr(rule["rightValue"], ""),
				Output: i,
			})
		}
	}

	return conds
}

// convertConnections resolves the name-keyed connection map into edges. The
// outer list index of each "main" entry becomes the edge's output index.
// Source names are visited in sorted order so conversion is deterministic.
func (p *Parser) convertConnections(connections map[string]any, nodeIDByName map[string]string) []workflow.Edge {
	var edges []workflow.Edge

	for _, sourceName := range sortedKeys(connections) {
		data, ok := connections[sourceName].(map[string]any)
		if !ok {
			continue
		}
		sourceID := resolveID(nodeIDByName, sourceName)

		main, ok := data["main"].([]any)
		if !ok {
			continue
		}
		for outputIdx, rawOutputs := range main {
			outputs, ok := rawOutputs.([]any)
			if !ok {
				continue
			}
			for _, rt := range outputs {
				target, ok := rt.(map[string]any)
				if !ok {
					continue
				}
				targetName := stringOr(target["node"], "")
				targetID := resolveID(nodeIDByName, targetName)

				edges = append(edges, workflow.Edge{
					ID:          fmt.Sprintf("edge_%s_%s", sourceID, targetID),
					Source:      sourceID,
					Target:      targetID,
					OutputIndex: outputIdx,
				})
			}
		}
	}

	return edges
}

func validateShape(doc map[string]any) error {
	var schemaDoc any
	if err := json.Unmarshal([]byte(documentSchema), &schemaDoc); err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("n8n.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("n8n.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	return schema.Validate(any(doc))
}

// generateID produces the short identifier used when a document omits one.
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func resolveID(nodeIDByName map[string]string, name string) string {
	if id, ok := nodeIDByName[name]; ok {
		return id
	}
	return name
}

func parsePosition(v any) workflow.Position {
	switch t := v.(type) {
	case []any:
		var p workflow.Position
		if len(t) > 0 {
			p.X = intOr(t[0], 0)
		}
		if len(t) > 1 {
			p.Y = intOr(t[1], 0)
		}
		return p
	case map[string]any:
		return workflow.Position{X: intOr(t["x"], 0), Y: intOr(t["y"], 0)}
	default:
		return workflow.Position{}
	}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func valueOr(v any, def any) any {
	if v == nil {
		return def
	}
	return v
}

func intOr(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
