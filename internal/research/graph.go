package research

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownDependency indicates a dependency reference missing from the graph.
var ErrUnknownDependency = fmt.Errorf("unknown dependency")

// ErrCycleDetected indicates the graph contains a cycle.
var ErrCycleDetected = fmt.Errorf("cycle detected")

// Task is one node in the static execution DAG.
type Task struct {
	ID        string
	DependsOn []string
	Run       func(ctx context.Context) error
}

// Graph is a static DAG of tasks. A task runs only after all of its
// dependencies have completed (barrier join); tasks whose dependencies are
// satisfied run concurrently.
type Graph struct {
	tasks map[string]Task
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{tasks: make(map[string]Task)}
}

// AddTask registers a task. Later additions with the same ID overwrite.
func (g *Graph) AddTask(t Task) {
	g.tasks[t.ID] = t
}

// validate checks dependency references and acyclicity via Kahn's count.
func (g *Graph) validate() (indegree map[string]int, adjacency map[string][]string, err error) {
	indegree = make(map[string]int, len(g.tasks))
	adjacency = make(map[string][]string, len(g.tasks))

	for id, task := range g.tasks {
		if _, ok := indegree[id]; !ok {
			indegree[id] = 0
		}
		for _, dep := range task.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, nil, fmt.Errorf("%w: %s -> %s", ErrUnknownDependency, id, dep)
			}
			adjacency[dep] = append(adjacency[dep], id)
			indegree[id]++
		}
	}

	remaining := make(map[string]int, len(indegree))
	for id, deg := range indegree {
		remaining[id] = deg
	}
	queue := make([]string, 0, len(g.tasks))
	for id, deg := range remaining {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, succ := range adjacency[current] {
			remaining[succ]--
			if remaining[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	if visited != len(g.tasks) {
		return nil, nil, ErrCycleDetected
	}
	return indegree, adjacency, nil
}

// Execute runs the graph to completion. A task error cancels outstanding
// work and is returned wrapped with the task ID; the first error wins.
func (g *Graph) Execute(ctx context.Context) error {
	indegree, adjacency, err := g.validate()
	if err != nil {
		return err
	}

	grp, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	remaining := make(map[string]int, len(indegree))
	for id, deg := range indegree {
		remaining[id] = deg
	}

	var schedule func(id string)
	schedule = func(id string) {
		task := g.tasks[id]
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task.Run(ctx); err != nil {
				return fmt.Errorf("task %s: %w", id, err)
			}
			mu.Lock()
			ready := make([]string, 0, len(adjacency[id]))
			for _, succ := range adjacency[id] {
				remaining[succ]--
				if remaining[succ] == 0 {
					ready = append(ready, succ)
				}
			}
			mu.Unlock()
			for _, succ := range ready {
				schedule(succ)
			}
			return nil
		})
	}

	for id, deg := range indegree {
		if deg == 0 {
			schedule(id)
		}
	}
	return grp.Wait()
}
