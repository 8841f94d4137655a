package world

import "math/rand"

// Arena is the bounded, content-addressed store of nodes and controllers.
// Both collections share the same eviction discipline: a fixed-size ring
// buffer of optional ids records insertion order, and the id occupying the
// write cursor's slot is unconditionally evicted (no reachability check)
// before every insertion once the arena is at capacity.
type Arena struct {
	maxChainsBinlog uint8
	maxChains       int

	nodes         map[Uid]Node
	nodesHistory  []OptUid
	iNodesHistory int
	newNodeUid    Uid

	controllers         map[Uid]*Controller
	controllersHistory  []OptUid
	iControllersHistory int
	newControllerUid    Uid
}

// NewArena creates an empty arena with capacity 2^binlog for nodes and,
// independently, 2^binlog for controllers.
func NewArena(binlog uint8) *Arena {
	n := 1 << binlog
	return &Arena{
		maxChainsBinlog:    binlog,
		maxChains:          n,
		nodes:              make(map[Uid]Node),
		nodesHistory:       make([]OptUid, n),
		controllers:        make(map[Uid]*Controller),
		controllersHistory: make([]OptUid, n),
	}
}

// NewArenaFromParts reconstructs an arena from its exact persisted fields
// (§6.1); used only by the save-format loader.
func NewArenaFromParts(
	binlog uint8,
	nodes map[Uid]Node, nodesHistory []OptUid, iNodesHistory int, newNodeUid Uid,
	controllers map[Uid]*Controller, controllersHistory []OptUid, iControllersHistory int, newControllerUid Uid,
) *Arena {
	return &Arena{
		maxChainsBinlog:     binlog,
		maxChains:           1 << binlog,
		nodes:               nodes,
		nodesHistory:        nodesHistory,
		iNodesHistory:       iNodesHistory,
		newNodeUid:          newNodeUid,
		controllers:         controllers,
		controllersHistory:  controllersHistory,
		iControllersHistory: iControllersHistory,
		newControllerUid:    newControllerUid,
	}
}

// Nodes returns the live node map directly, for the save-format writer's
// iteration; callers must treat it as read-only.
func (a *Arena) Nodes() map[Uid]Node { return a.nodes }

// Controllers returns the live controller map directly, for the
// save-format writer's iteration; callers must treat it as read-only.
func (a *Arena) Controllers() map[Uid]*Controller { return a.controllers }

// NodesHistory, INodesHistory, ControllersHistory, IControllersHistory and
// the two uid counters expose the arena's full persisted state to the
// save-format writer.
func (a *Arena) NodesHistory() []OptUid            { return a.nodesHistory }
func (a *Arena) INodesHistory() int                { return a.iNodesHistory }
func (a *Arena) NewNodeUid() Uid                   { return a.newNodeUid }
func (a *Arena) ControllersHistory() []OptUid      { return a.controllersHistory }
func (a *Arena) IControllersHistory() int          { return a.iControllersHistory }
func (a *Arena) NewControllerUid() Uid             { return a.newControllerUid }

// MaxChains returns the current capacity shared by nodes and controllers.
func (a *Arena) MaxChains() int { return a.maxChains }

// MaxChainsBinlog returns the current capacity's binary logarithm.
func (a *Arena) MaxChainsBinlog() uint8 { return a.maxChainsBinlog }

// NumNodes returns the number of live nodes.
func (a *Arena) NumNodes() int { return len(a.nodes) }

// NumControllers returns the number of live controllers.
func (a *Arena) NumControllers() int { return len(a.controllers) }

// GetNode returns the node for id if live.
func (a *Arena) GetNode(id OptUid) (Node, bool) {
	uid, ok := id.Get()
	if !ok {
		return Node{}, false
	}
	n, ok := a.nodes[uid]
	return n, ok
}

// GetController returns the controller for id if live.
func (a *Arena) GetController(id OptUid) (*Controller, bool) {
	uid, ok := id.Get()
	if !ok {
		return nil, false
	}
	c, ok := a.controllers[uid]
	return c, ok
}

// SetNode overwrites an already-live node's value (used by commands that
// mutate content/edges in place, e.g. Write, Insert's splice, Remove's
// splice-out). It is a no-op if the id is not live.
func (a *Arena) SetNode(id OptUid, n Node) {
	uid, ok := id.Get()
	if !ok {
		return
	}
	if _, live := a.nodes[uid]; !live {
		return
	}
	a.nodes[uid] = n
}

// evictNodeSlot advances the nodes ring buffer by one slot, unconditionally
// dropping whatever lived there, and returns the freshly vacated slot index.
func (a *Arena) evictNodeSlot() int {
	slot := a.iNodesHistory
	if victim, ok := a.nodesHistory[slot].Get(); ok {
		delete(a.nodes, victim)
	}
	a.iNodesHistory = (a.iNodesHistory + 1) % a.maxChains
	return slot
}

// AddNode allocates a new node with the given raw content byte, evicting the
// oldest node if the arena is at capacity (§4.1).
func (a *Arena) AddNode(content uint8) OptUid {
	slot := a.evictNodeSlot()
	id := a.newNodeUid
	a.newNodeUid = nextUid(a.newNodeUid)
	a.nodes[id] = Node{Content: content, Next: Absent, AltNext: Absent}
	a.nodesHistory[slot] = Some(id)
	return Some(id)
}

// AddNodeAfter allocates a new node and splices it in as target's Next edge.
// If target is absent or not live, nothing is allocated and Absent is
// returned.
func (a *Arena) AddNodeAfter(content uint8, target OptUid) OptUid {
	tuid, ok := target.Get()
	if !ok {
		return Absent
	}
	tnode, ok := a.nodes[tuid]
	if !ok {
		return Absent
	}
	newID := a.AddNode(content)
	nuid, ok := newID.Get()
	if !ok {
		return Absent
	}
	// AddNode's eviction may have just deleted target itself; re-check,
	// mirroring the reference's entry(...).and_modify, which silently
	// no-ops (and reports failure) when the target vanished meanwhile.
	if _, stillLive := a.nodes[tuid]; !stillLive {
		return Absent
	}
	tnode.Next = Some(nuid)
	a.nodes[tuid] = tnode
	return newID
}

// RemoveNode erases id from the map, blanks its slot in the history ring
// (by linear scan, since the ring is indexed by write order, not by id),
// and rewrites every live node's Next/AltNext edge pointing at id to point
// instead at id's own Next (full splice-out, §4.1).
//
// When the edge being rewritten is an AltNext, the replacement is written
// into that referring node's Next, not its AltNext. This is not a typo: it
// is the documented eviction behavior, and saved worlds depend on it (§9).
func (a *Arena) RemoveNode(id OptUid) {
	uid, ok := id.Get()
	if !ok {
		return
	}
	removed, ok := a.nodes[uid]
	if !ok {
		return
	}
	delete(a.nodes, uid)
	for i, h := range a.nodesHistory {
		if hid, present := h.Get(); present && hid == uid {
			a.nodesHistory[i] = Absent
			break
		}
	}
	for other, n := range a.nodes {
		changed := false
		if nid, present := n.Next.Get(); present && nid == uid {
			n.Next = removed.Next
			changed = true
		}
		if aid, present := n.AltNext.Get(); present && aid == uid {
			n.Next = removed.Next
			changed = true
		}
		if changed {
			a.nodes[other] = n
		}
	}
}

// evictControllerSlot is the controllers' analogue of evictNodeSlot.
// Controllers are never referenced by other entities, so eviction never
// needs a splice pass.
func (a *Arena) evictControllerSlot() int {
	slot := a.iControllersHistory
	if victim, ok := a.controllersHistory[slot].Get(); ok {
		delete(a.controllers, victim)
	}
	a.iControllersHistory = (a.iControllersHistory + 1) % a.maxChains
	return slot
}

// AddController installs ctrl into the arena under a freshly allocated id,
// evicting the oldest controller if at capacity.
func (a *Arena) AddController(ctrl *Controller) OptUid {
	slot := a.evictControllerSlot()
	id := a.newControllerUid
	a.newControllerUid = nextUid(a.newControllerUid)
	a.controllers[id] = ctrl
	a.controllersHistory[slot] = Some(id)
	return Some(id)
}

// RemoveController erases id from the map and blanks its history slot.
func (a *Arena) RemoveController(id OptUid) {
	uid, ok := id.Get()
	if !ok {
		return
	}
	if _, live := a.controllers[uid]; !live {
		return
	}
	delete(a.controllers, uid)
	for i, h := range a.controllersHistory {
		if hid, present := h.Get(); present && hid == uid {
			a.controllersHistory[i] = Absent
			break
		}
	}
}

// WriteBackController overwrites a live controller's stored value. It is a
// no-op if id is no longer live, which is exactly the case the tick loop
// relies on when a controller evicts itself mid-tick (§4.2's write-back
// rule, §9's tick-isolation note).
func (a *Arena) WriteBackController(id OptUid, ctrl *Controller) bool {
	uid, ok := id.Get()
	if !ok {
		return false
	}
	if _, live := a.controllers[uid]; !live {
		return false
	}
	a.controllers[uid] = ctrl
	return true
}

// RandomNode returns a uniformly random live node id, or Absent if empty.
func (a *Arena) RandomNode(rng *rand.Rand) OptUid {
	if len(a.nodes) == 0 {
		return Absent
	}
	return Some(a.randomKey(rng, a.nodes))
}

// RandomController returns a uniformly random live controller id, or Absent
// if empty.
func (a *Arena) RandomController(rng *rand.Rand) OptUid {
	if len(a.controllers) == 0 {
		return Absent
	}
	i := rng.Intn(len(a.controllers))
	for id := range a.controllers {
		if i == 0 {
			return Some(id)
		}
		i--
	}
	return Absent
}

func (a *Arena) randomKey(rng *rand.Rand, m map[Uid]Node) Uid {
	i := rng.Intn(len(m))
	for id := range m {
		if i == 0 {
			return id
		}
		i--
	}
	panic("unreachable: randomKey on empty map")
}

// PreviousEdge describes one edge found by PreviousNodes: the id of the
// referring node, whether the edge is the main (Next) edge as opposed to
// AltNext, and that node's raw content byte.
type PreviousEdge struct {
	Id      Uid
	IsMain  bool
	Content uint8
}

// PreviousNodes returns every live node whose Next or AltNext equals id,
// an O(|nodes|) scan (§4.1).
func (a *Arena) PreviousNodes(id OptUid) []PreviousEdge {
	uid, ok := id.Get()
	if !ok {
		return nil
	}
	var out []PreviousEdge
	for other, n := range a.nodes {
		if nid, present := n.Next.Get(); present && nid == uid {
			out = append(out, PreviousEdge{Id: other, IsMain: true, Content: n.Content})
		}
		if aid, present := n.AltNext.Get(); present && aid == uid {
			out = append(out, PreviousEdge{Id: other, IsMain: false, Content: n.Content})
		}
	}
	return out
}

// ChangeLimit resizes the arena to 2^newBinlog, §4.1. Growing inserts Δ
// absence slots into the history ring at the current write cursor without
// dropping any existing entry; shrinking rotates the ring so the oldest
// entries are first, evicts the oldest Δ entities from the map, and
// truncates.
func (a *Arena) ChangeLimit(newBinlog uint8) {
	newMax := 1 << newBinlog
	a.nodesHistory, a.iNodesHistory = resizeHistory(a.nodesHistory, a.iNodesHistory, newMax, func(id Uid) { delete(a.nodes, id) })
	a.controllersHistory, a.iControllersHistory = resizeHistory(a.controllersHistory, a.iControllersHistory, newMax, func(id Uid) { delete(a.controllers, id) })
	a.maxChainsBinlog = newBinlog
	a.maxChains = newMax
}

// resizeHistory implements the growing/shrinking rule of ChangeLimit for one
// ring buffer. On growth, Δ = newMax-len(old) absence slots are spliced into
// the ring right at the current write cursor, so existing entries keep their
// relative order and none are dropped. On shrink, the ring is first rotated
// so index 0 holds the oldest surviving entry, then the oldest Δ = len(old)
// - newMax entries are evicted via onEvict and the ring is truncated to
// newMax, with the write cursor wrapping to 0.
func resizeHistory(old []OptUid, cursor int, newMax int, onEvict func(Uid)) ([]OptUid, int) {
	oldMax := len(old)
	if newMax == oldMax {
		return old, cursor
	}
	if newMax > oldMax {
		delta := newMax - oldMax
		grown := make([]OptUid, 0, newMax)
		grown = append(grown, old[:cursor]...)
		grown = append(grown, make([]OptUid, delta)...)
		grown = append(grown, old[cursor:]...)
		return grown, cursor
	}
	// Shrinking: rotate so the oldest entry (at cursor) is first.
	rotated := make([]OptUid, 0, oldMax)
	rotated = append(rotated, old[cursor:]...)
	rotated = append(rotated, old[:cursor]...)
	delta := oldMax - newMax
	evicted, kept := rotated[:delta], rotated[delta:]
	for _, h := range evicted {
		if id, ok := h.Get(); ok {
			onEvict(id)
		}
	}
	shrunk := make([]OptUid, newMax)
	copy(shrunk, kept)
	return shrunk, 0
}
