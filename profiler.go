package sdfcull

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler records the duration of named scopes and per-frame counters.
// Passes run on the device goroutine while the host records the next frame,
// so every method is safe for concurrent use.
type Profiler struct {
	mu         sync.Mutex
	scopes     map[string]time.Duration
	totals     map[string]time.Duration
	startTimes map[string]time.Time
	counts     map[string]int
	order      []string
	frames     int
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:     make(map[string]time.Duration),
		totals:     make(map[string]time.Duration),
		startTimes: make(map[string]time.Time),
		counts:     make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTimes[name] = time.Now()
	for _, n := range p.order {
		if n == name {
			return
		}
	}
	p.order = append(p.order, name)
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start, ok := p.startTimes[name]; ok {
		d := time.Since(start)
		p.scopes[name] = d
		p.totals[name] += d
		delete(p.startTimes, name)
	}
}

// Scope times fn under name.
func (p *Profiler) Scope(name string, fn func() error) error {
	p.BeginScope(name)
	defer p.EndScope(name)
	return fn()
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

func (p *Profiler) AddCount(name string, delta int) {
	p.mu.Lock()
	p.counts[name] += delta
	p.mu.Unlock()
}

func (p *Profiler) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}

// Last returns the most recent duration of a scope.
func (p *Profiler) Last(name string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scopes[name]
}

// EndFrame marks a frame boundary for the averages in GetStatsString.
func (p *Profiler) EndFrame() {
	p.mu.Lock()
	p.frames++
	p.mu.Unlock()
}

func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Keep order, reset times
	for k := range p.scopes {
		p.scopes[k] = 0
		p.totals[k] = 0
	}
	p.frames = 0
}

func (p *Profiler) GetStatsString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		if p.frames > 0 {
			avg := float64(p.totals[name].Microseconds()) / 1000.0 / float64(p.frames)
			sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms (avg %.2f ms)\n", name, ms, avg))
		} else {
			sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
		}
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.counts[k]))
	}
	if p.frames > 0 {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", "frames", p.frames))
	}

	return sb.String()
}
