package world

import (
	"math/rand"
	"time"
)

// World is the top-level owner of every piece of state named in §3: the
// arena, the two ether arrays, the command gate, the glitch probabilities
// and counters, the per-command/per-construction/per-branch telemetry, and
// the two external collaborators.
type World struct {
	Arena *Arena
	Ether *Ether

	CommandSwitch CommandSwitch
	Age           BigCounter

	PBackground float64
	PReplicate  float64
	PConstruct  float64

	GlitchBackgroundCount BigCounter
	GlitchReplicateCount  BigCounter
	GlitchConstructCount  BigCounter

	CommandsCount      map[Command]BigCounter
	ConstructionsCount map[Construction]BigCounter
	// SpacesCount is carried for save-format compatibility; nothing in the
	// tick loop increments it, though it is still written and read on
	// every save/load round trip.
	SpacesCount       BigCounter
	BranchesMainCount BigCounter
	BranchesAltCount  BigCounter

	FileMap FileMapCollaborator
	Peers   *PeerSet

	rng *rand.Rand
}

// NewWorld returns a fresh world with empty arena of capacity 2^binlog, the
// reset-default command switch, zeroed counters, and an idle peer set.
func NewWorld(binlog uint8, seed int64) *World {
	return &World{
		Arena:              NewArena(binlog),
		Ether:              NewEther(),
		CommandSwitch:      NewCommandSwitch(),
		CommandsCount:      make(map[Command]BigCounter),
		ConstructionsCount: make(map[Construction]BigCounter),
		Peers:              NewPeerSet(),
		rng:                rand.New(rand.NewSource(seed)),
	}
}

// NewWorldFromTime is a convenience constructor seeding the PRNG from the
// wall clock, for interactive use (§5's reproducibility requirement applies
// to test seeding, not to every caller).
func NewWorldFromTime(binlog uint8) *World {
	return NewWorld(binlog, time.Now().UnixNano())
}

// Cleanse replaces the arena and ether with fresh, empty instances while
// preserving configuration (command switch, glitch probabilities, peer and
// file-map configuration).
func (w *World) Cleanse() {
	w.Arena = NewArena(w.Arena.MaxChainsBinlog())
	w.Ether = NewEther()
	w.Age = BigCounter{}
	w.GlitchBackgroundCount = BigCounter{}
	w.GlitchReplicateCount = BigCounter{}
	w.GlitchConstructCount = BigCounter{}
	w.CommandsCount = make(map[Command]BigCounter)
	w.ConstructionsCount = make(map[Construction]BigCounter)
	w.SpacesCount = BigCounter{}
	w.BranchesMainCount = BigCounter{}
	w.BranchesAltCount = BigCounter{}
}

// ChangeLimit resizes the arena, delegating to Arena.ChangeLimit (§4.1).
func (w *World) ChangeLimit(newBinlog uint8) {
	w.Arena.ChangeLimit(newBinlog)
}

// SetCommandSwitch enables or disables one command.
func (w *World) SetCommandSwitch(c Command, on bool) {
	w.CommandSwitch.SetEnabled(c, on)
}

// SetGlitchProbabilities sets the three glitch rates; out-of-range values
// are clamped into [0,1].
func (w *World) SetGlitchProbabilities(background, replicate, construct float64) {
	w.PBackground = clampProbability(background)
	w.PReplicate = clampProbability(replicate)
	w.PConstruct = clampProbability(construct)
}

func clampProbability(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// incCommand bumps the per-command counter. dispatch calls it for every
// enabled command it runs, whether or not the command set flags.success;
// commands disabled by the command switch are not counted.
func (w *World) incCommand(c Command) {
	v := w.CommandsCount[c]
	v.Inc()
	w.CommandsCount[c] = v
}

// incConstruction bumps the per-construction-marker counter.
func (w *World) incConstruction(c Construction) {
	v := w.ConstructionsCount[c]
	v.Inc()
	w.ConstructionsCount[c] = v
}

// nowMicros is the external-collaborator clock; a dedicated function keeps
// the one real-time read in the tick loop isolated.
func nowMicros() int64 {
	return time.Now().UnixNano() / 1000
}

// MemUsage approximates the world's byte footprint (§5): a rough per-entity
// accounting rather than a precise allocator trace.
func (w *World) MemUsage() uint64 {
	const nodeBytes = 1 + 4 + 4          // content + next + alt_next, ids packed
	const etherBytes = 8                  // widest element, integers
	var total uint64
	total += uint64(w.Arena.NumNodes()) * nodeBytes
	total += uint64(len(w.Arena.nodesHistory)) * 4
	total += uint64(len(w.Arena.controllersHistory)) * 4
	total += uint64(len(w.Ether.Optuids)) * 4
	total += uint64(len(w.Ether.Integers)) * etherBytes
	total += uint64(w.Arena.NumControllers()) * 512 // rough controller footprint
	return total
}
