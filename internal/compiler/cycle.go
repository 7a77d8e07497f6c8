package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/gaplus/internal/ir"
)

// Recursion describes a set of mutually recursive predicates.
//
// Recursion is reported as information, not as an error: weighted rules
// such as transitive closure are recursive by nature and still reach a
// fixpoint as long as weights stop improving by more than epsilon.
type Recursion struct {
	Path       []string `json:"path"`       // ["path", "path"] or ["a", "b", "a"]
	Predicates []string `json:"predicates"` // sorted members of the component
	Message    string   `json:"message"`
	Level      string   `json:"level"`
}

// AnalyzeRecursion finds recursive predicate groups in a rule set.
//
// The algorithm:
//  1. Build the predicate graph: an edge body → head for every rule
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each component with more than one predicate, or a self-loop
//
// Output is deterministic: nodes and edges are visited in sorted order.
func AnalyzeRecursion(rules []*ir.Rule) []Recursion {
	graph := buildPredicateGraph(rules)

	var out []Recursion
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			out = append(out, sccToRecursion(scc, graph))
		}
	}
	slices.SortFunc(out, func(a, b Recursion) int {
		return strings.Compare(a.Predicates[0], b.Predicates[0])
	})
	return out
}

// predicateGraph maps a predicate to the predicates derived from it.
type predicateGraph map[string][]string

func buildPredicateGraph(rules []*ir.Rule) predicateGraph {
	graph := make(predicateGraph)
	for _, r := range rules {
		head := r.Header.Predicate
		if graph[head] == nil {
			graph[head] = []string{}
		}
		for _, b := range r.Body {
			if !slices.Contains(graph[b.Predicate], head) {
				graph[b.Predicate] = append(graph[b.Predicate], head)
			}
		}
	}
	for p := range graph {
		slices.Sort(graph[p])
	}
	return graph
}

func hasSelfLoop(node string, graph predicateGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC returns the strongly connected components of graph.
func tarjanSCC(graph predicateGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToRecursion(scc []string, graph predicateGraph) Recursion {
	members := slices.Clone(scc)
	slices.Sort(members)

	if len(members) == 1 {
		p := members[0]
		return Recursion{
			Path:       []string{p, p},
			Predicates: members,
			Message:    fmt.Sprintf("predicate %s is derived from itself", p),
			Level:      LevelInfo,
		}
	}

	path := cyclePath(members, graph)
	return Recursion{
		Path:       path,
		Predicates: members,
		Message:    fmt.Sprintf("mutually recursive predicates: %s", strings.Join(path, " → ")),
		Level:      LevelInfo,
	}
}

// cyclePath walks from the first member along edges inside the component
// until it returns to the start.
func cyclePath(members []string, graph predicateGraph) []string {
	start := members[0]
	current := start
	path := []string{current}
	visited := map[string]bool{}

	for {
		visited[current] = true
		var next string
		for _, n := range graph[current] {
			if slices.Contains(members, n) && (!visited[n] || n == start) {
				next = n
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
