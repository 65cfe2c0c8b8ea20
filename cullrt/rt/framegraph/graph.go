// Package framegraph orders the passes of one frame by the resources they
// touch. Every read-after-write, write-after-read and write-after-write on a
// resource becomes an explicit barrier between the two passes.
package framegraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle           = errors.New("frame graph has a cycle")
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnknownPass     = errors.New("unknown pass")
)

type Hazard uint8

const (
	// ReadAfterWrite: the writer's results must be visible to the reader.
	ReadAfterWrite Hazard = iota
	// WriteAfterRead: the reader must finish before the resource is overwritten.
	WriteAfterRead
	// WriteAfterWrite: the writes must land in declaration order.
	WriteAfterWrite
	// Execution is an explicit ordering with no resource attached.
	Execution
)

func (h Hazard) String() string {
	switch h {
	case ReadAfterWrite:
		return "RAW"
	case WriteAfterRead:
		return "WAR"
	case WriteAfterWrite:
		return "WAW"
	}
	return "EXEC"
}

// Barrier is one synchronization point: the From pass's accesses to Resource
// must complete before To begins.
type Barrier struct {
	From     string
	To       string
	Resource string
	Hazard   Hazard
}

func (b Barrier) String() string {
	if b.Resource == "" {
		return fmt.Sprintf("%s -> %s [%s]", b.From, b.To, b.Hazard)
	}
	return fmt.Sprintf("%s -> %s [%s %s]", b.From, b.To, b.Hazard, b.Resource)
}

// Pass is one stage of the frame. Run may be nil for passes that only exist
// to order others.
type Pass struct {
	Name   string
	Reads  []string
	Writes []string
	// After lists passes that must run first regardless of resources.
	After []string
	Run   func(ctx context.Context) error
}

// Resolver reports whether a resource name is known, e.g. a binding table.
type Resolver interface {
	Has(name string) bool
}

type Graph struct {
	resolver Resolver
	passes   []*Pass
	index    map[string]int
}

// New creates an empty graph. A nil resolver accepts any resource name.
func New(resolver Resolver) *Graph {
	return &Graph{resolver: resolver, index: make(map[string]int)}
}

// AddPass appends a pass. Declaration order decides the direction of every
// hazard on a shared resource.
func (g *Graph) AddPass(p Pass) error {
	if p.Name == "" {
		return fmt.Errorf("framegraph: pass with empty name")
	}
	if _, ok := g.index[p.Name]; ok {
		return fmt.Errorf("framegraph: duplicate pass %q", p.Name)
	}
	g.index[p.Name] = len(g.passes)
	g.passes = append(g.passes, &p)
	return nil
}

type resourceState struct {
	writer  int
	readers []int
}

// Compile derives the barriers and a topological order of the passes. Among
// passes that are ready at the same time, declaration order wins, so the
// result is deterministic.
func (g *Graph) Compile() (*Plan, error) {
	n := len(g.passes)
	var barriers []Barrier
	edges := make([]map[int]bool, n)
	for i := range edges {
		edges[i] = make(map[int]bool)
	}
	addEdge := func(from, to int, res string, h Hazard) {
		if from == to {
			return
		}
		edges[from][to] = true
		barriers = append(barriers, Barrier{From: g.passes[from].Name, To: g.passes[to].Name, Resource: res, Hazard: h})
	}

	state := make(map[string]*resourceState)
	get := func(res string) *resourceState {
		s, ok := state[res]
		if !ok {
			s = &resourceState{writer: -1}
			state[res] = s
		}
		return s
	}

	for i, p := range g.passes {
		for _, res := range append(append([]string(nil), p.Reads...), p.Writes...) {
			if g.resolver != nil && !g.resolver.Has(res) {
				return nil, fmt.Errorf("pass %q: %w %q", p.Name, ErrUnknownResource, res)
			}
		}
		for _, dep := range p.After {
			j, ok := g.index[dep]
			if !ok {
				return nil, fmt.Errorf("pass %q after %q: %w", p.Name, dep, ErrUnknownPass)
			}
			addEdge(j, i, "", Execution)
		}

		for _, res := range p.Reads {
			s := get(res)
			if s.writer >= 0 {
				addEdge(s.writer, i, res, ReadAfterWrite)
			}
		}
		for _, res := range p.Writes {
			s := get(res)
			readers := 0
			for _, r := range s.readers {
				if r != i {
					addEdge(r, i, res, WriteAfterRead)
					readers++
				}
			}
			// A pass that reads what it writes is already ordered by its RAW.
			if readers == 0 && s.writer >= 0 && !contains(p.Reads, res) {
				addEdge(s.writer, i, res, WriteAfterWrite)
			}
			s.writer = i
			s.readers = s.readers[:0]
		}
		for _, res := range p.Reads {
			if !contains(p.Writes, res) {
				s := get(res)
				s.readers = append(s.readers, i)
			}
		}
	}

	// Kahn's algorithm, always taking the earliest declared ready pass.
	indegree := make([]int, n)
	for _, out := range edges {
		for to := range out {
			indegree[to]++
		}
	}
	done := make([]bool, n)
	order := make([]*Pass, 0, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := 0; i < n; i++ {
				if !done[i] {
					stuck = append(stuck, g.passes[i].Name)
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, g.passes[next])
		for to := range edges[next] {
			indegree[to]--
		}
	}

	return &Plan{passes: order, barriers: barriers}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// BarrierHook is told about every barrier right before the pass that waits on
// it starts. A GPU backend records the matching memory barrier here.
type BarrierHook func(b Barrier) error

// Plan is a compiled, immutable frame graph.
type Plan struct {
	passes   []*Pass
	barriers []Barrier
}

// Order returns the pass names in execution order.
func (p *Plan) Order() []string {
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = pass.Name
	}
	return names
}

func (p *Plan) Barriers() []Barrier {
	return append([]Barrier(nil), p.barriers...)
}

// BarriersBefore returns the barriers that gate the named pass.
func (p *Plan) BarriersBefore(pass string) []Barrier {
	var out []Barrier
	for _, b := range p.barriers {
		if b.To == pass {
			out = append(out, b)
		}
	}
	return out
}

// Execute runs every pass in order. The first failing pass or hook stops the
// plan. Passes are never interrupted by ctx; it is only handed to them.
func (p *Plan) Execute(ctx context.Context, hook BarrierHook) error {
	for _, pass := range p.passes {
		if hook != nil {
			for _, b := range p.BarriersBefore(pass.Name) {
				if err := hook(b); err != nil {
					return fmt.Errorf("barrier %s: %w", b, err)
				}
			}
		}
		if pass.Run == nil {
			continue
		}
		if err := pass.Run(ctx); err != nil {
			return fmt.Errorf("pass %q: %w", pass.Name, err)
		}
	}
	return nil
}
