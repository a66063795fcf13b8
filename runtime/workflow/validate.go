package workflow

import "fmt"

// Validate checks the structural integrity of a workflow and returns one
// message per violation. An empty slice means the workflow is executable.
//
// Checks: identity fields, non-empty node set, at least one trigger, unique
// node IDs, skill bindings on non-trigger nodes, edge endpoint resolution,
// and acyclicity.
func Validate(w *Workflow) []string {
	var errs []string

	if w.ID == "" {
		errs = append(errs, "Missing workflow ID")
	}
	if w.Name == "" {
		errs = append(errs, "Missing workflow name")
	}
	if len(w.Nodes) == 0 {
		errs = append(errs, "Workflow has no nodes")
	}
	if len(w.Triggers) == 0 {
		errs = append(errs, "Workflow has no trigger nodes")
	}

	nodeIDs := make(map[string]bool, len(w.Nodes))
	for _, n := range w.Nodes {
		if nodeIDs[n.ID] {
			errs = append(errs, fmt.Sprintf("Duplicate node ID: %s", n.ID))
		}
		nodeIDs[n.ID] = true

		if n.SkillID == "" && n.Type != NodeTypeTrigger {
			errs = append(errs, fmt.Sprintf("Node %s has no skill_id", n.ID))
		}
	}

	for _, e := range w.Edges {
		if !nodeIDs[e.Source] {
			errs = append(errs, fmt.Sprintf("Edge references unknown source: %s", e.Source))
		}
		if !nodeIDs[e.Target] {
			errs = append(errs, fmt.Sprintf("Edge references unknown target: %s", e.Target))
		}
	}

	if len(w.Nodes) > 0 && HasCycle(w) {
		errs = append(errs, "Workflow contains a cycle")
	}

	return errs
}

// ExecutionOrder returns the node IDs in topological order using Kahn's
// algorithm. Ties are broken by node declaration order so the result is
// deterministic. Nodes on a cycle are absent from the result.
func ExecutionOrder(w *Workflow) []string {
	inDegree := make(map[string]int, len(w.Nodes))
	adjacency := make(map[string][]string, len(w.Nodes))
	for _, n := range w.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range w.Edges {
		if _, ok := inDegree[e.Source]; !ok {
			continue
		}
		if _, ok := inDegree[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var queue []string
	for _, n := range w.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	order := make([]string, 0, len(w.Nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)
		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}

// HasCycle reports whether the workflow graph contains a directed cycle.
func HasCycle(w *Workflow) bool {
	return len(ExecutionOrder(w)) != len(w.Nodes)
}
