// Package build drives whole-program checking: it assembles the module
// dependency graph, condenses cycles, and re-checks only what a change
// actually invalidates.
package build

import (
	"sort"
	"sync"

	"github.com/pyrite-lang/pyrite/pkg/ast"
)

// Graph is the module-level import graph. Nodes are module names;
// missing import targets get placeholder nodes so the condensation and
// scheduling stay total.
type Graph struct {
	mu sync.RWMutex

	modules map[string]*ast.Module // name -> parsed module, nil for placeholders

	imports    map[string]map[string]bool // from -> to
	importedBy map[string]map[string]bool // to -> from
}

func NewGraph() *Graph {
	return &Graph{
		modules:    make(map[string]*ast.Module),
		imports:    make(map[string]map[string]bool),
		importedBy: make(map[string]map[string]bool),
	}
}

// Add registers a parsed module and its import edges. Re-adding a
// module replaces its prior edges so edits do not leave stale imports
// behind.
func (g *Graph) Add(mod *ast.Module) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.modules[mod.Name]; exists {
		g.removeEdgesLocked(mod.Name)
	}
	g.modules[mod.Name] = mod

	g.imports[mod.Name] = make(map[string]bool)
	for _, imp := range mod.Imports() {
		if imp.Module == mod.Name {
			continue
		}
		g.imports[mod.Name][imp.Module] = true
		if g.importedBy[imp.Module] == nil {
			g.importedBy[imp.Module] = make(map[string]bool)
		}
		g.importedBy[imp.Module][mod.Name] = true

		// Placeholder node for a target we have not (yet) parsed.
		if _, known := g.modules[imp.Module]; !known {
			g.modules[imp.Module] = nil
		}
	}
}

// Remove drops a module from the graph. Dependents keep their edge to
// the now-placeholder node; their next check reports the missing
// import.
func (g *Graph) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesLocked(name)
	if len(g.importedBy[name]) > 0 {
		g.modules[name] = nil // demote to placeholder
		return
	}
	delete(g.modules, name)
	delete(g.importedBy, name)
}

func (g *Graph) removeEdgesLocked(name string) {
	for to := range g.imports[name] {
		delete(g.importedBy[to], name)
		if len(g.importedBy[to]) == 0 {
			delete(g.importedBy, to)
			// Unreferenced placeholders disappear with their last edge.
			if mod, present := g.modules[to]; present && mod == nil {
				delete(g.modules, to)
			}
		}
	}
	delete(g.imports, name)
}

// Module returns the parsed module for name, nil for placeholders.
func (g *Graph) Module(name string) (*ast.Module, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	mod, ok := g.modules[name]
	return mod, ok
}

// Names returns every node name in sorted order.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.modules))
	for name := range g.modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the sorted direct imports of a module.
func (g *Graph) Dependencies(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.imports[name]))
	for to := range g.imports[name] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Dependents returns every module that transitively imports name, in
// sorted order. This is the invalidation frontier of an interface
// change.
func (g *Graph) Dependents(name string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[string]bool{name: true}
	queue := []string{name}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for from := range g.importedBy[cur] {
			if seen[from] {
				continue
			}
			seen[from] = true
			out = append(out, from)
			queue = append(queue, from)
		}
	}
	sort.Strings(out)
	return out
}

// Condensation is the DAG of strongly connected components. Comps holds
// each component's member names sorted; Order is a topological order of
// component indices with dependencies first, deterministic across runs.
type Condensation struct {
	Comps  [][]string
	CompOf map[string]int
	Edges  map[int]map[int]bool // comp -> comps it depends on
	Order  []int
}

// Condense computes the SCC condensation of the current graph.
func (g *Graph) Condense() *Condensation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	names := make([]string, 0, len(g.modules))
	for name := range g.modules {
		names = append(names, name)
	}
	sort.Strings(names)

	adjacency := make(map[string][]string, len(names))
	for _, name := range names {
		targets := make([]string, 0, len(g.imports[name]))
		for to := range g.imports[name] {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		adjacency[name] = targets
	}

	compOf, comps := tarjanSCC(names, adjacency)

	edges := make(map[int]map[int]bool, len(comps))
	for _, from := range names {
		fromComp := compOf[from]
		for _, to := range adjacency[from] {
			toComp := compOf[to]
			if fromComp == toComp {
				continue
			}
			if edges[fromComp] == nil {
				edges[fromComp] = make(map[int]bool)
			}
			edges[fromComp][toComp] = true
		}
	}

	c := &Condensation{Comps: comps, CompOf: compOf, Edges: edges}
	c.Order = c.topoOrder()
	return c
}

// topoOrder yields component indices with dependencies before
// dependents; ties break on the smallest member name so scheduling is
// reproducible.
func (c *Condensation) topoOrder() []int {
	remaining := make(map[int]int, len(c.Comps)) // comp -> unresolved dep count
	for i := range c.Comps {
		remaining[i] = len(c.Edges[i])
	}

	dependents := make(map[int][]int)
	for from, tos := range c.Edges {
		for to := range tos {
			dependents[to] = append(dependents[to], from)
		}
	}

	var ready []int
	for i := range c.Comps {
		if remaining[i] == 0 {
			ready = append(ready, i)
		}
	}

	less := func(a, b int) bool { return c.Comps[a][0] < c.Comps[b][0] }

	order := make([]int, 0, len(c.Comps))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, dep := range dependents[next] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return order
}

// Levels groups the topological order into waves: every component in a
// wave depends only on earlier waves, so one wave can check in
// parallel.
func (c *Condensation) Levels() [][]int {
	depth := make(map[int]int, len(c.Comps))
	maxDepth := 0
	for _, comp := range c.Order {
		d := 0
		for dep := range c.Edges[comp] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[comp] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([][]int, maxDepth+1)
	for _, comp := range c.Order {
		levels[depth[comp]] = append(levels[depth[comp]], comp)
	}
	return levels
}

func tarjanSCC(nodes []string, adjacency map[string][]string) (map[string]int, [][]string) {
	index := 0
	stack := make([]string, 0, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	indexByNode := make(map[string]int, len(nodes))
	lowLink := make(map[string]int, len(nodes))
	compOf := make(map[string]int, len(nodes))
	comps := make([][]string, 0)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indexByNode[v] = index
		lowLink[v] = index
		index++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adjacency[v] {
			if _, seen := indexByNode[w]; !seen {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexByNode[w] < lowLink[v] {
				lowLink[v] = indexByNode[w]
			}
		}

		if lowLink[v] != indexByNode[v] {
			return
		}

		comp := make([]string, 0)
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			comp = append(comp, last)
			if last == v {
				break
			}
		}
		sort.Strings(comp)
		id := len(comps)
		comps = append(comps, comp)
		for _, n := range comp {
			compOf[n] = id
		}
	}

	for _, node := range nodes {
		if _, seen := indexByNode[node]; !seen {
			strongConnect(node)
		}
	}

	return compOf, comps
}
