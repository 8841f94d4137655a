package world

import "testing"

func newTestWorld(binlog uint8) *World {
	return NewWorld(binlog, 42)
}

// TestScenarioA_LinearProgram walks a controller down a chain of three
// Increment commands and confirms it falls off the end afterward.
func TestScenarioA_LinearProgram(t *testing.T) {
	w := newTestWorld(4)

	space := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	n1 := w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindCommand, Command: CmdIncrement}), space)
	n2 := w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindCommand, Command: CmdIncrement}), n1)
	_ = w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindCommand, Command: CmdIncrement}), n2)

	cid := w.Spawn(space)

	for i := 0; i < 4; i++ {
		w.Tick(cid)
	}

	ctrl, ok := w.Arena.GetController(cid)
	if !ok {
		t.Fatal("controller evicted unexpectedly")
	}
	if ctrl.Registers.Integer != 3 {
		t.Errorf("after tick 4: Integer = %d, want 3", ctrl.Registers.Integer)
	}
	if ctrl.Exec != Absent {
		t.Errorf("after tick 4: Exec = %+v, want Absent (fell off the end)", ctrl.Exec)
	}

	w.Tick(cid)
	if ctrl2, ok := w.Arena.GetController(cid); ok {
		t.Errorf("a controller with no Exec must be removed on its next tick, still live with Integer = %d", ctrl2.Registers.Integer)
	}
}

// TestScenarioB_BranchTest walks Space -> TestIntegerPositive -> Branch ->
// main:Increment / alt:Decrement with an initial register of 0. Since 0 is
// not positive, TestIntegerPositive leaves flags.success false, the branch
// carries that over and follows alt_next, and Decrement runs.
func TestScenarioB_BranchTest(t *testing.T) {
	w := newTestWorld(8)

	mainTarget := w.Arena.AddNode(encodeContent(Content{Kind: KindCommand, Command: CmdIncrement}))
	altTarget := w.Arena.AddNode(encodeContent(Content{Kind: KindCommand, Command: CmdDecrement}))
	branch := w.Arena.AddNode(encodeContent(Content{Kind: KindBranch}))
	if bn, ok := w.Arena.GetNode(branch); ok {
		bn.Next = mainTarget
		bn.AltNext = altTarget
		w.Arena.SetNode(branch, bn)
	}
	test := w.Arena.AddNode(encodeContent(Content{Kind: KindCommand, Command: CmdTestIntegerPositive}))
	if tn, ok := w.Arena.GetNode(test); ok {
		tn.Next = branch
		w.Arena.SetNode(test, tn)
	}
	space := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	if sn, ok := w.Arena.GetNode(space); ok {
		sn.Next = test
		w.Arena.SetNode(space, sn)
	}

	cid := w.Spawn(space)
	w.Tick(cid) // Space
	w.Tick(cid) // TestIntegerPositive on register 0: success=false
	ctrl, _ := w.Arena.GetController(cid)
	if ctrl.Flags.Success {
		t.Fatal("TestIntegerPositive on register 0 should report failure")
	}

	w.Tick(cid) // Branch follows alt_next on the carried-over failure
	ctrl, _ = w.Arena.GetController(cid)
	if ctrl.Exec != altTarget {
		t.Errorf("branch should have followed alt_next to Decrement")
	}

	w.Tick(cid) // Decrement runs
	ctrl, _ = w.Arena.GetController(cid)
	if ctrl.Registers.Integer != -1 {
		t.Errorf("register = %d, want -1", ctrl.Registers.Integer)
	}
}

// TestSpaceLeavesFlagsUntouched confirms that executing a Space neither runs
// a command nor resets flags.success.
func TestSpaceLeavesFlagsUntouched(t *testing.T) {
	w := newTestWorld(8)
	space := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	cid := w.Spawn(space)
	ctrl, _ := w.Arena.GetController(cid)
	ctrl.Flags.Success = true
	w.Arena.WriteBackController(cid, ctrl)

	w.Tick(cid)
	ctrl, _ = w.Arena.GetController(cid)
	if !ctrl.Flags.Success {
		t.Error("executing a Space must not reset flags.success")
	}
}

// TestScenarioC_ReplicateTerminates builds a three-node cycle A->B->C->A and
// runs a passive-mode replicate() over it. Exactly three new nodes should be
// created (one full traversal of the cycle) before the read-set catches the
// repeat of A and the loop exits.
func TestScenarioC_ReplicateTerminates(t *testing.T) {
	w := newTestWorld(8)

	a := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	b := w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindSpace}), a) // a -> b
	c := w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindSpace}), b) // b -> c
	if cn, ok := w.Arena.GetNode(c); ok {
		cn.Next = a // close the cycle: c -> a
		w.Arena.SetNode(c, cn)
	}

	before := w.Arena.NumNodes()

	newChainStart := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	ctrl := NewController(Absent)
	ctrl.Data[0] = a
	ctrl.NewChain = newChainStart
	cid := w.Arena.AddController(ctrl)

	live, _ := w.Arena.GetController(cid)
	w.replicate(live)
	w.Arena.WriteBackController(cid, live)

	after := w.Arena.NumNodes()
	// +1 for newChainStart itself, +3 for the cycle traversal.
	if got, want := after-before, 4; got != want {
		t.Errorf("nodes created = %d, want %d (1 seed + 3 cycle copies)", got, want)
	}
	if !live.Flags.Success {
		t.Error("replicate() terminating by cycle detection should report success")
	}
}

// TestScenarioE_CommandSwitchDisablesCommand confirms a disabled command
// doesn't run its logic, always reports success, and never increments
// commands_count.
func TestScenarioE_CommandSwitchDisablesCommand(t *testing.T) {
	w := newTestWorld(8)
	w.SetCommandSwitch(CmdAdd, false)

	space := w.Arena.AddNode(encodeContent(Content{Kind: KindSpace}))
	_ = w.Arena.AddNodeAfter(encodeContent(Content{Kind: KindCommand, Command: CmdAdd}), space)
	cid := w.Spawn(space)
	ctrl, _ := w.Arena.GetController(cid)
	ctrl.Registers.Integer = 5
	w.Arena.WriteBackController(cid, ctrl)

	w.Tick(cid)
	w.Tick(cid)
	ctrl, _ = w.Arena.GetController(cid)
	if ctrl.Registers.Integer != 5 {
		t.Errorf("disabled command ran its logic: Integer = %d, want unchanged 5", ctrl.Registers.Integer)
	}
	if !ctrl.Flags.Success {
		t.Error("disabled command must report success")
	}
	if _, counted := w.CommandsCount[CmdAdd]; counted {
		t.Error("disabled command must not increment commands_count")
	}
}

// TestScenarioF_CapacityEviction adds 10 nodes to an arena with capacity 8
// (max_chains_binlog = 3) and confirms the oldest two are evicted, the
// history ring is fully populated, and its write cursor wrapped to 2.
func TestScenarioF_CapacityEviction(t *testing.T) {
	a := NewArena(3) // capacity 8
	ids := make([]OptUid, 10)
	for i := range ids {
		ids[i] = a.AddNode(0)
	}

	if _, ok := a.GetNode(ids[0]); ok {
		t.Error("first inserted node should have been evicted")
	}
	if _, ok := a.GetNode(ids[1]); ok {
		t.Error("second inserted node should have been evicted")
	}
	if a.NumNodes() != 8 {
		t.Errorf("NumNodes = %d, want 8 (capacity)", a.NumNodes())
	}
	for _, h := range a.NodesHistory() {
		if !h.Present() {
			t.Error("nodes_history should be fully populated after wraparound")
		}
	}
	if a.INodesHistory() != 2 {
		t.Errorf("INodesHistory = %d, want 2", a.INodesHistory())
	}
}

func TestArenaRemoveNodeRewritesAltNextIntoNext(t *testing.T) {
	a := NewArena(8)
	target := a.AddNode(0)
	referrer := a.AddNode(0)
	if n, ok := a.GetNode(referrer); ok {
		n.AltNext = target
		a.SetNode(referrer, n)
	}
	replacement := a.AddNode(0)
	if tn, ok := a.GetNode(target); ok {
		tn.Next = replacement
		a.SetNode(target, tn)
	}

	a.RemoveNode(target)

	n, _ := a.GetNode(referrer)
	if n.Next != replacement {
		t.Errorf("removed node's AltNext referrer should be rewritten into Next, got Next=%+v AltNext=%+v", n.Next, n.AltNext)
	}
}

func TestCommandSwitchDefaultsDisableIntrospection(t *testing.T) {
	s := NewCommandSwitch()
	if s.Enabled(CmdGetExecFromOptuid) {
		t.Error("GetExecFromOptuid should default to disabled")
	}
	if s.Enabled(CmdSetOptuidFromExec) {
		t.Error("SetOptuidFromExec should default to disabled")
	}
	if !s.Enabled(CmdIncrement) {
		t.Error("ordinary commands should default to enabled")
	}
}
