package sdg

import (
	"testing"

	"github.com/llir/llvm/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchalupa/dgo/config"
	"github.com/mchalupa/dgo/irfrontend"
	"github.com/mchalupa/dgo/pointer"
)

func TestAddEdgeRecordsBothDirections(t *testing.T) {
	g := &Graph{Nodes: make(map[pointer.NodeID]*SDGNode)}
	g.addEdge(1, 2, EdgeData)

	assert.Len(t, g.node(1).Out, 1)
	assert.Len(t, g.node(2).In, 1)
	assert.Equal(t, pointer.NodeID(1), g.node(2).In[0].From)
	assert.Equal(t, EdgeData, g.node(2).In[0].Kind)
}

func TestNodeIsCreatedLazilyAndReused(t *testing.T) {
	g := &Graph{Nodes: make(map[pointer.NodeID]*SDGNode)}
	n1 := g.node(5)
	n2 := g.node(5)
	assert.Same(t, n1, n2)
}

// resolveCallees re-derives a CALL node's target(s) rather than
// reading a cached field off the node: neither KindCall nor
// KindCallFuncPtr stores its resolved callee on itself.
func TestResolveCalleesDirectCallReturnsNamedCallee(t *testing.T) {
	const src = `
define void @callee() {
entry:
  ret void
}

define void @main() {
entry:
  call void @callee()
  ret void
}
`
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)
	result, err := pointer.NewAnalysis(m, config.DefaultPTAOptions())
	require.NoError(t, err)

	a := result.Analysis
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	callID, ok := a.NodeForInst(main, main.Blocks[0].Insts[0])
	require.True(t, ok)

	callees := resolveCallees(a, a.Nodes()[callID])
	require.Len(t, callees, 1)
	assert.Equal(t, irfrontend.FuncByName(m, "callee"), callees[0].Func)
}

// An indirect call through a function pointer loaded from memory may
// resolve to either function whose address reached that pointer,
// mirroring how callFuncPtrConstraint.apply would wire the call.
func TestResolveCalleesIndirectCallReturnsEveryCandidate(t *testing.T) {
	const src = `
@fp = global void ()* null

define void @f() {
entry:
  ret void
}

define void @g() {
entry:
  ret void
}

define void @main() {
entry:
  store void ()* @f, void ()** @fp
  store void ()* @g, void ()** @fp
  %p = load void ()*, void ()** @fp
  call void %p()
  ret void
}
`
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)
	result, err := pointer.NewAnalysis(m, config.DefaultPTAOptions())
	require.NoError(t, err)

	a := result.Analysis
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	require.Len(t, main.Blocks[0].Insts, 4)
	callID, ok := a.NodeForInst(main, main.Blocks[0].Insts[3])
	require.True(t, ok)

	callees := resolveCallees(a, a.Nodes()[callID])
	var names []string
	for _, c := range callees {
		names = append(names, c.Func.Name())
	}
	assert.ElementsMatch(t, []string{"f", "g"}, names)
}

// wireCallEdges adds an EdgeCallGraph edge per resolveCallees
// candidate, gated on the callee having a real ENTRY (a
// declaration-only function has none).
func TestWireCallEdgesAddsCallGraphEdgePerCallee(t *testing.T) {
	const src = `
define void @callee() {
entry:
  ret void
}

define void @main() {
entry:
  call void @callee()
  ret void
}
`
	m, err := asm.ParseString("test.ll", src)
	require.NoError(t, err)
	result, err := pointer.NewAnalysis(m, config.DefaultPTAOptions())
	require.NoError(t, err)

	a := result.Analysis
	main := irfrontend.FuncByName(m, "main")
	require.NotNil(t, main)
	sg := a.SubgraphFor(main)
	callID, ok := a.NodeForInst(main, main.Blocks[0].Insts[0])
	require.True(t, ok)

	g := &Graph{Nodes: make(map[pointer.NodeID]*SDGNode)}
	wireCallEdges(a, sg, g)

	calleeSg := a.SubgraphFor(irfrontend.FuncByName(m, "callee"))
	require.NotZero(t, calleeSg.Entry)
	found := false
	for _, e := range g.node(callID).Out {
		if e.Kind == EdgeCallGraph && e.To == calleeSg.Entry {
			found = true
		}
	}
	assert.True(t, found)
}
