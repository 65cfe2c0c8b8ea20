package framegraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type names map[string]bool

func (n names) Has(name string) bool { return n[name] }

var frameResources = names{"draw-args": true, "entries": true, "pyramid": true, "depth": true, "instances": true}

// Declared out of execution order on purpose: the hazards alone must put the
// argument clear before the culling pass.
func cullingFrame(t *testing.T, log *[]string) *Graph {
	t.Helper()
	run := func(name string) func(context.Context) error {
		return func(context.Context) error {
			*log = append(*log, name)
			return nil
		}
	}
	g := New(frameResources)
	require.NoError(t, g.AddPass(Pass{Name: "clear-args", Writes: []string{"draw-args"}, Run: run("clear-args")}))
	require.NoError(t, g.AddPass(Pass{
		Name:   "cull",
		Reads:  []string{"instances", "pyramid", "draw-args"},
		Writes: []string{"entries", "draw-args"},
		Run:    run("cull"),
	}))
	require.NoError(t, g.AddPass(Pass{Name: "build-pyramid", Reads: []string{"depth"}, Writes: []string{"pyramid"}, Run: run("build-pyramid")}))
	require.NoError(t, g.AddPass(Pass{
		Name:   "draw",
		Reads:  []string{"draw-args", "entries", "instances"},
		Writes: []string{"depth"},
		Run:    run("draw"),
	}))
	return g
}

func TestCullingFrameBarriers(t *testing.T) {
	var log []string
	plan, err := cullingFrame(t, &log).Compile()
	require.NoError(t, err)

	assert.Equal(t, []string{"clear-args", "cull", "build-pyramid", "draw"}, plan.Order())
	assert.ElementsMatch(t, []Barrier{
		{From: "clear-args", To: "cull", Resource: "draw-args", Hazard: ReadAfterWrite},
		{From: "cull", To: "build-pyramid", Resource: "pyramid", Hazard: WriteAfterRead},
		{From: "cull", To: "draw", Resource: "draw-args", Hazard: ReadAfterWrite},
		{From: "cull", To: "draw", Resource: "entries", Hazard: ReadAfterWrite},
		{From: "build-pyramid", To: "draw", Resource: "depth", Hazard: WriteAfterRead},
	}, plan.Barriers())
}

func TestEveryBarrierRespectsOrder(t *testing.T) {
	var log []string
	plan, err := cullingFrame(t, &log).Compile()
	require.NoError(t, err)

	pos := map[string]int{}
	for i, n := range plan.Order() {
		pos[n] = i
	}
	for _, b := range plan.Barriers() {
		assert.Less(t, pos[b.From], pos[b.To], "barrier %s", b)
	}
}

func TestExecuteReportsBarriersBeforeDependent(t *testing.T) {
	var log []string
	plan, err := cullingFrame(t, &log).Compile()
	require.NoError(t, err)

	err = plan.Execute(context.Background(), func(b Barrier) error {
		log = append(log, "barrier "+b.String())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"clear-args",
		"barrier clear-args -> cull [RAW draw-args]",
		"cull",
		"barrier cull -> build-pyramid [WAR pyramid]",
		"build-pyramid",
		"barrier cull -> draw [RAW draw-args]",
		"barrier cull -> draw [RAW entries]",
		"barrier build-pyramid -> draw [WAR depth]",
		"draw",
	}, log)
}

func TestExplicitOrderingReorders(t *testing.T) {
	g := New(nil)
	require.NoError(t, g.AddPass(Pass{Name: "b", After: []string{"a"}}))
	require.NoError(t, g.AddPass(Pass{Name: "a"}))
	plan, err := g.Compile()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.Order())
	assert.Equal(t, []Barrier{{From: "a", To: "b", Hazard: Execution}}, plan.Barriers())
}

func TestWriteAfterWrite(t *testing.T) {
	g := New(nil)
	require.NoError(t, g.AddPass(Pass{Name: "first", Writes: []string{"buf"}}))
	require.NoError(t, g.AddPass(Pass{Name: "second", Writes: []string{"buf"}}))
	plan, err := g.Compile()
	require.NoError(t, err)
	assert.Equal(t, []Barrier{{From: "first", To: "second", Resource: "buf", Hazard: WriteAfterWrite}}, plan.Barriers())
}

func TestCompileRejects(t *testing.T) {
	g := New(frameResources)
	require.NoError(t, g.AddPass(Pass{Name: "cull", Reads: []string{"uniforms"}}))
	_, err := g.Compile()
	assert.ErrorIs(t, err, ErrUnknownResource)

	g = New(nil)
	require.NoError(t, g.AddPass(Pass{Name: "a", After: []string{"b"}}))
	require.NoError(t, g.AddPass(Pass{Name: "b", After: []string{"a"}}))
	_, err = g.Compile()
	assert.ErrorIs(t, err, ErrCycle)

	g = New(nil)
	require.NoError(t, g.AddPass(Pass{Name: "a", After: []string{"ghost"}}))
	_, err = g.Compile()
	assert.ErrorIs(t, err, ErrUnknownPass)

	assert.Error(t, g.AddPass(Pass{Name: "a"}))
}

func TestExecuteStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	g := New(nil)
	require.NoError(t, g.AddPass(Pass{Name: "fail", Writes: []string{"x"}, Run: func(context.Context) error { return boom }}))
	require.NoError(t, g.AddPass(Pass{Name: "next", Reads: []string{"x"}, Run: func(context.Context) error {
		ran = true
		return nil
	}}))
	plan, err := g.Compile()
	require.NoError(t, err)

	err = plan.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}
