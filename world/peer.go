package world

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// PeerTransport is the opaque, out-of-scope external collaborator providing
// pseudonymous publish/subscribe transport between aelhometta instances
// (§1, §4.5). The core never interprets the blobs it exchanges beyond
// decoding them as a run of little-endian Integer values.
type PeerTransport interface {
	// Emit publishes blob to every subscriber reachable from this instance's
	// address/port/secret key.
	Emit(blob []byte) error
	// Receive returns the most recent blob published by the peer identified
	// by publicKey, if any has arrived since the last call.
	Receive(publicKey string) (blob []byte, ok bool, err error)
}

// OtherPeer is the core-side bookkeeping kept for one remote instance: its
// identity and address, a cached copy of the integer-ether slice it last
// shared, and when that cache was last refreshed.
type OtherPeer struct {
	PublicKey     string
	Onion         string
	Port          uint16
	EtherIntegers []Integer
	LastUpdate    int64 // microseconds since Unix epoch
}

// PeerSet bundles every peer-related field the World carries: its own
// exposure state, the configured peers and whitelist, and the share
// scheduling parameters, laid out to match the save format exactly (§10.4).
type PeerSet struct {
	ShareSize     int
	ShareInterval int64 // microseconds; 0 means "never"
	LastShare     int64

	SecretKey     string
	Port          uint16
	TorProxyPort  uint16
	TorProxyHost  string

	Exposed bool

	Others    []OtherPeer
	Whitelist map[string]bool

	InPermittedBeforeNum uint64
	InAttemptedBeforeNum uint64

	Transport PeerTransport // nil when no transport is plugged in

	// blobCache bounds memory used for recently-seen peer shares independent
	// of, and in addition to, the arena's own FIFO: a misbehaving or
	// oversized peer list can't grow this past its fixed capacity.
	blobCache *lru.Cache[string, []byte]
}

const defaultPeerBlobCacheSize = 256

// NewPeerSet returns an unexposed PeerSet with an empty whitelist.
func NewPeerSet() *PeerSet {
	cache, err := lru.New[string, []byte](defaultPeerBlobCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultPeerBlobCacheSize never is.
		panic(fmt.Sprintf("world: peer blob cache: %v", err))
	}
	return &PeerSet{
		Whitelist: make(map[string]bool),
		blobCache: cache,
	}
}

// Expose transitions Idle -> Exposed (§9's peer-exposure state machine).
// Peer-configuration setters require Idle; Emit/Update require Exposed.
func (p *PeerSet) Expose() { p.Exposed = true }

// Repose transitions Exposed -> Idle.
func (p *PeerSet) Repose() { p.Exposed = false }

// ErrPeerConfigRequiresIdle is returned by peer-configuration setters when
// the peer set is currently exposed.
var ErrPeerConfigRequiresIdle = fmt.Errorf("peer configuration requires the peer set to be idle (call Repose first)")

// SetSecretKey sets the local secret key; requires Idle.
func (p *PeerSet) SetSecretKey(key string) error {
	if p.Exposed {
		return ErrPeerConfigRequiresIdle
	}
	p.SecretKey = key
	return nil
}

// Update implements PeerCollaborator: it refreshes each configured other
// peer's cached ether_integers (bounded concurrency across peers, since a
// serial poll of N peers would make update() latency scale with N), and, if
// due, emits the first ShareSize channels of the local integer ether as one
// blob.
func (p *PeerSet) Update(e *Ether, nowMicros int64) {
	if !p.Exposed || p.Transport == nil || len(p.Others) == 0 {
		p.maybeShare(e, nowMicros)
		return
	}

	const maxConcurrentPolls = 8
	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentPolls)

	type refresh struct {
		idx  int
		vals []Integer
	}
	results := make(chan refresh, len(p.Others))

	for i := range p.Others {
		i := i
		pk := p.Others[i].PublicKey
		g.Go(func() error {
			blob, ok, err := p.Transport.Receive(pk)
			if err != nil || !ok {
				return nil // best-effort; a peer that errors just keeps its stale cache
			}
			p.blobCache.Add(pk, blob)
			results <- refresh{idx: i, vals: decodeIntegerBlob(blob)}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	for r := range results {
		p.Others[r.idx].EtherIntegers = r.vals
		p.Others[r.idx].LastUpdate = nowMicros
	}

	p.maybeShare(e, nowMicros)
}

func (p *PeerSet) maybeShare(e *Ether, nowMicros int64) {
	if !p.Exposed || p.Transport == nil || p.ShareSize <= 0 {
		return
	}
	if p.ShareInterval == 0 || nowMicros-p.LastShare < p.ShareInterval {
		return
	}
	n := p.ShareSize
	if n > len(e.Integers) {
		n = len(e.Integers)
	}
	blob := encodeIntegerBlob(e.Integers[:n])
	if err := p.Transport.Emit(blob); err == nil {
		p.LastShare = nowMicros
	}
}

func encodeIntegerBlob(vals []Integer) []byte {
	out := make([]byte, len(vals)*8)
	for i, v := range vals {
		putUint64LE(out[i*8:i*8+8], uint64(v))
	}
	return out
}

func decodeIntegerBlob(blob []byte) []Integer {
	n := len(blob) / 8
	out := make([]Integer, n)
	for i := 0; i < n; i++ {
		out[i] = int64(getUint64LE(blob[i*8 : i*8+8]))
	}
	return out
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
