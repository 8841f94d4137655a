// Package world implements the aelhometta automaton core: a bounded arena of
// nodes and controllers, the tick-driven instruction interpreter, the
// multi-step constructor, and the ether/collaborator surface. It has no
// notion of files, terminals, or transports beyond the narrow interfaces
// those collaborators are called through.
package world

import (
	"math"
	"math/big"
)

// Uid identifies a node or a controller. Only the low 31 bits are ever used;
// the top bit of the 32-bit wire form is reserved as the optional-id presence
// flag (see OptUid).
type Uid uint32

// maxUid is the modulus identifiers are allocated under: 2^31.
const maxUid = uint64(1) << 31

// OptUid is an optional Uid: either a live identifier or Absent. Any stored
// identifier (in a node, a controller, or an ether slot) may become dangling
// after eviction; dereferencing a dangling id always resolves as Absent
// rather than panicking.
type OptUid struct {
	id      Uid
	present bool
}

// Absent is the zero value of OptUid and denotes "no identifier".
var Absent = OptUid{}

// Some wraps a live identifier.
func Some(id Uid) OptUid {
	return OptUid{id: id, present: true}
}

// Present reports whether the optional id actually refers to something (the
// caller must still check liveness against the arena; Present only reflects
// the presence flag carried by the value itself).
func (o OptUid) Present() bool { return o.present }

// Get returns the wrapped id and whether it was present.
func (o OptUid) Get() (Uid, bool) { return o.id, o.present }

// Integer is the 64-bit signed register type used throughout controllers,
// the integer ether, and file-mapped channels.
type Integer = int64

// nextUid advances a monotonic id counter modulo 2^31, as §3 requires.
func nextUid(cur Uid) Uid {
	return Uid((uint64(cur) + 1) % maxUid)
}

// clampIndex bounds-checks an index against an exclusive upper bound.
func clampIndex(i, n int) bool {
	return i >= 0 && i < n
}

// minInt64Big, maxInt64Big and uint64Mask bound the checked-arithmetic range
// below. math/big's bitwise operators treat operands as two's complement, so
// masking with uint64Mask yields the low 64 bits of the exact result with
// the correct sign once reinterpreted as uint64.
var (
	minInt64Big = big.NewInt(math.MinInt64)
	maxInt64Big = big.NewInt(math.MaxInt64)
	uint64Mask  = new(big.Int).SetUint64(math.MaxUint64)
)

// checkedOp computes op(a, b) at arbitrary precision and reports whether the
// exact mathematical result fits in an int64. The returned value is always
// the low 64 bits of the exact result (what a wrapping int64 op would have
// produced) even on overflow — per §9, a failed arithmetic command still
// writes the wrapped result to the register.
func checkedOp(a, b int64, op func(z, x, y *big.Int) *big.Int) (result int64, ok bool) {
	x, y, z := big.NewInt(a), big.NewInt(b), new(big.Int)
	op(z, x, y)
	fits := z.Cmp(minInt64Big) >= 0 && z.Cmp(maxInt64Big) <= 0
	wrapped := new(big.Int).And(z, uint64Mask)
	return int64(wrapped.Uint64()), fits
}

func addInt128(a, b int64) (int64, bool) { return checkedOp(a, b, (*big.Int).Add) }
func subInt128(a, b int64) (int64, bool) { return checkedOp(a, b, (*big.Int).Sub) }
func mulInt128(a, b int64) (int64, bool) { return checkedOp(a, b, (*big.Int).Mul) }

// quoInt128 computes truncated division at arbitrary precision; the only
// int64/int64 division that can overflow is MinInt64 / -1.
func quoInt128(a, b int64) (int64, bool) { return checkedOp(a, b, (*big.Int).Quo) }
