// Package task runs one render as a directed acyclic graph of named
// asynchronous steps. Each node is a function of its already-resolved
// dependencies, evaluated exactly once; a node starts only after every
// dependency has resolved, and any node's failure fails the whole run.
//
// The graph does not roll back partial work. Side effects already performed
// by completed nodes are the caller's responsibility to undo through its own
// cleanup path.
package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/frameport/frameport/internal/async"
)

// Results holds resolved node outputs keyed by node name.
type Results map[string]any

// Func computes one node from the outputs of its dependencies.
type Func func(ctx context.Context, deps Results) (any, error)

type node struct {
	name string
	deps []string
	fn   Func
	out  *async.Deferred[any]
}

// Graph is a named set of deferred nodes with declared predecessor sets.
type Graph struct {
	name string

	mu    sync.Mutex
	nodes map[string]*node
	order []string
	run   *async.Once[Results]
}

// New creates an empty graph.
func New(name string) *Graph {
	g := &Graph{
		name:  name,
		nodes: make(map[string]*node),
	}
	g.run = async.NewOnce(g.execute)
	return g
}

// Node declares a named step depending on zero or more other steps.
// Declaring a duplicate name panics; the graph is assembled by one owner
// before Run and a collision is a programming error.
func (g *Graph) Node(name string, fn Func, deps ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[name]; ok {
		panic(fmt.Sprintf("task: duplicate node %q in graph %q", name, g.name))
	}
	g.nodes[name] = &node{
		name: name,
		deps: deps,
		fn:   fn,
		out:  async.NewDeferred[any](),
	}
	g.order = append(g.order, name)
}

// Run evaluates the graph. Nodes with no unresolved dependencies start
// immediately and independent branches run concurrently. Run is memoized:
// repeated calls return the first run's settled outcome without
// re-executing any node.
func (g *Graph) Run(ctx context.Context) (Results, error) {
	return g.run.Do(ctx)
}

func (g *Graph) execute(ctx context.Context) (Results, error) {
	g.mu.Lock()
	nodes := make([]*node, 0, len(g.nodes))
	for _, name := range g.order {
		nodes = append(nodes, g.nodes[name])
	}
	g.mu.Unlock()

	if err := g.validate(nodes); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failure := async.NewDeferred[error]()
	var wg sync.WaitGroup

	for _, n := range nodes {
		n := n
		wg.Add(1)
		go func() {
			defer wg.Done()

			deps := make(Results, len(n.deps))
			for _, dep := range n.deps {
				v, err := g.nodes[dep].out.Await(ctx)
				if err != nil {
					n.out.Reject(fmt.Errorf("task %q: dependency %q: %w", n.name, dep, err))
					return
				}
				deps[dep] = v
			}

			v, err := n.fn(ctx, deps)
			if err != nil {
				err = fmt.Errorf("task %q: %w", n.name, err)
				n.out.Reject(err)
				failure.Resolve(err)
				cancel()
				return
			}
			n.out.Resolve(v)
		}()
	}

	wg.Wait()

	if failure.Settled() {
		err, _ := failure.Await(context.Background())
		return nil, err
	}

	results := make(Results, len(nodes))
	for _, n := range nodes {
		v, err := n.out.Await(context.Background())
		if err != nil {
			return nil, err
		}
		results[n.name] = v
	}
	return results, nil
}

// validate checks that every dependency exists and the graph is acyclic.
func (g *Graph) validate(nodes []*node) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))

	var visit func(name string) error
	visit = func(name string) error {
		n, ok := g.nodes[name]
		if !ok {
			return fmt.Errorf("task: graph %q references unknown node %q", g.name, name)
		}
		switch color[name] {
		case grey:
			return fmt.Errorf("task: graph %q has a cycle through %q", g.name, name)
		case black:
			return nil
		}
		color[name] = grey
		for _, dep := range n.deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, n := range nodes {
		if err := visit(n.name); err != nil {
			return err
		}
	}
	return nil
}
