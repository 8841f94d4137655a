// Package adapter is the seam where the two out-of-scope external
// collaborators — the integer-ether file mapping and the peer transport —
// plug into a world, expressed purely as interfaces plus a small metadata
// descriptor a host program can use to introspect what it's driving (§10.1).
// It mirrors the reference codebase's adapter package, which played the same
// role for a concrete emulator core: a single factory type a frontend can
// query for descriptive metadata and use to construct the thing it drives,
// without the frontend needing to know the core's internals.
package adapter

import "github.com/aelhometta/vm/world"

// Info describes a world's static configuration for a host program, the way
// the reference codebase's SystemInfo described an emulated console's
// metadata to its frontend.
type Info struct {
	MaxChainsBinlog uint8
	NodeCapacity    int
	HasFileMap      bool
	HasPeers        bool
}

// Factory constructs worlds and wires in whichever collaborators the host
// program configured; Describe reports the result as an Info descriptor.
type Factory struct {
	FileMap world.FileMapCollaborator
	Peers   world.PeerTransport
}

// NewWorld builds a fresh world of the requested capacity and plugs in
// whichever collaborators the Factory was configured with.
func (f *Factory) NewWorld(chainsBinlog uint8, seed int64) *world.World {
	w := world.NewWorld(chainsBinlog, seed)
	if f.FileMap != nil {
		w.FileMap = f.FileMap
	}
	if f.Peers != nil {
		w.Peers.Transport = f.Peers
	}
	return w
}

// Describe reports w's static configuration.
func Describe(w *world.World) Info {
	return Info{
		MaxChainsBinlog: w.Arena.MaxChainsBinlog(),
		NodeCapacity:    w.Arena.MaxChains(),
		HasFileMap:      w.FileMap != nil,
		HasPeers:        w.Peers != nil && w.Peers.Transport != nil,
	}
}
