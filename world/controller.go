package world

// Capacities of a controller's local register files and channel-index
// registers.
const (
	NumCtrlDataOptuids      = 8
	NumCtrlOptuids          = 0x10
	NumCtrlIntegers         = 0x20
	NumCtrlOptuidChannels   = 0x10
	NumCtrlIntegerChannels  = 0x20
	NumOptuidChannels       = 0x10000
	NumIntegerChannels      = 0x100000
)

// Registers holds a controller's single integer accumulator.
type Registers struct {
	Integer Integer
}

// Flags holds the single success/failure bit every command writes.
type Flags struct {
	Success bool
}

// Controller is an execution context: a program cursor, a register file,
// and the local index registers that select which element of each array is
// currently addressed (§3).
type Controller struct {
	ChainStart OptUid
	Exec       OptUid

	Data   [NumCtrlDataOptuids]OptUid
	IData  int

	NewChain      OptUid
	NewController *Controller // owned by this controller until NewChainDetach

	Registers Registers
	Flags     Flags

	Optuids  [NumCtrlOptuids]OptUid
	IOptuid  int

	Integers [NumCtrlIntegers]Integer
	IInteger int

	OptuidChannels [NumCtrlOptuidChannels]int
	IOptuidChannel int

	IntegerChannels [NumCtrlIntegerChannels]int
	IIntegerChannel int

	IPeer int // 0 = self; 1..=len(otherPeers) = a specific other peer

	Generation BigCounter
	Ticks      BigCounter
}

// NewController returns a freshly Restart-ed controller whose program starts
// at chainStart.
func NewController(chainStart OptUid) *Controller {
	c := &Controller{}
	c.ChainStart = chainStart
	c.restart()
	return c
}

// restart implements the Restart command's effect in one place, since
// NewController also uses it to initialize every fresh controller, including
// the nascent controller NewChainInitActive creates.
func (c *Controller) restart() {
	c.Exec = c.ChainStart
	c.Data = [NumCtrlDataOptuids]OptUid{}
	c.IData = 0
	c.NewChain = Absent
	c.NewController = nil
	c.Registers = Registers{}
	c.Flags = Flags{}
	c.Optuids = [NumCtrlOptuids]OptUid{}
	c.IOptuid = 0
	c.Integers = [NumCtrlIntegers]Integer{}
	c.IInteger = 0
	c.OptuidChannels = [NumCtrlOptuidChannels]int{}
	c.IOptuidChannel = 0
	c.IntegerChannels = [NumCtrlIntegerChannels]int{}
	c.IIntegerChannel = 0
	c.IPeer = 0
}

// clone returns a deep copy suitable for the tick loop's copy-on-write
// dispatch (§4.2 step 3): the world must be able to discard a tick's
// mutations wholesale if the controller's own id gets evicted mid-tick.
func (c *Controller) clone() *Controller {
	cp := *c
	if c.NewController != nil {
		nc := c.NewController.clone()
		cp.NewController = nc
	}
	return &cp
}

// BigCounter is a 128-bit counter for generation and tick counts. Go has no
// native uint128; two uint64 halves are enough headroom for any run this
// automaton could realistically reach, and the serializer round-trips both
// halves through the LEB128 u128 encoding.
type BigCounter struct {
	Hi uint64
	Lo uint64
}

// Inc increments the counter by one, carrying into Hi on Lo overflow.
func (b *BigCounter) Inc() {
	b.Lo++
	if b.Lo == 0 {
		b.Hi++
	}
}
