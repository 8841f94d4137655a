package worldio

import (
	"bufio"
	"fmt"
	"io"

	"github.com/aelhometta/vm/world"
)

// legacy command codes that swapped identity across format "000019" (§6.1.1).
const (
	legacySwapA1 = 18
	legacySwapA2 = 19
	legacySwapB1 = 61
	legacySwapB2 = 62
)

func readWorld(r *bufio.Reader) (*world.World, error) {
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, fmt.Errorf("worldio: read signature: %w", err)
	}
	if string(sig) != signature {
		return nil, fmt.Errorf("worldio: bad signature %q", sig)
	}

	verBuf := make([]byte, 6)
	if _, err := io.ReadFull(r, verBuf); err != nil {
		return nil, fmt.Errorf("worldio: read version: %w", err)
	}
	version := string(verBuf)
	if !isLoadable(version) {
		return nil, fmt.Errorf("worldio: unsupported format version %q", version)
	}

	needsCommandCodeSwap := version != FormatVersion && version != "00001A" && version != "000019"

	binlog, err := readByteVal(r)
	if err != nil {
		return nil, err
	}
	newNodeUid, err := readUint(r)
	if err != nil {
		return nil, err
	}

	numNodes, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	nodes := make(map[world.Uid]world.Node, numNodes)
	for i := 0; i < numNodes; i++ {
		uid, err := readUint(r)
		if err != nil {
			return nil, err
		}
		n, err := readNode(r)
		if err != nil {
			return nil, err
		}
		if needsCommandCodeSwap {
			n.Content = swapLegacyCommandCode(n.Content)
		}
		nodes[world.Uid(uid)] = n
	}

	nodesHistory, err := readOptUidSlice(r)
	if err != nil {
		return nil, err
	}
	iNodesHistory, err := readUsize(r)
	if err != nil {
		return nil, err
	}

	newControllerUid, err := readUint(r)
	if err != nil {
		return nil, err
	}
	numControllers, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	controllers := make(map[world.Uid]*world.Controller, numControllers)
	for i := 0; i < numControllers; i++ {
		uid, err := readUint(r)
		if err != nil {
			return nil, err
		}
		c, err := readController(r)
		if err != nil {
			return nil, err
		}
		controllers[world.Uid(uid)] = c
	}
	controllersHistory, err := readOptUidSlice(r)
	if err != nil {
		return nil, err
	}
	iControllersHistory, err := readUsize(r)
	if err != nil {
		return nil, err
	}

	arena := world.NewArenaFromParts(
		binlog,
		nodes, nodesHistory, iNodesHistory, world.Uid(newNodeUid),
		controllers, controllersHistory, iControllersHistory, world.Uid(newControllerUid),
	)

	var commandSwitch world.CommandSwitch
	switch version {
	case FormatVersion:
		hi, lo, err := readBigCounter(r)
		if err != nil {
			return nil, err
		}
		commandSwitch = world.CommandSwitchFromUint128(hi, lo)
	case "00001A", "000019", "000018", "000017":
		introspection, err := readBool(r)
		if err != nil {
			return nil, err
		}
		commandSwitch = world.MigrateLegacyIntrospection(introspection)
	default:
		// "000016": no introspection concept existed yet; every command
		// including the introspection pair defaults to enabled.
		commandSwitch = world.AllCommandsEnabled()
	}

	etherOptuids, err := readOptUidSlice(r)
	if err != nil {
		return nil, err
	}
	numEtherIntegers, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	etherIntegers := make([]world.Integer, numEtherIntegers)
	for i := range etherIntegers {
		v, err := readInt(r)
		if err != nil {
			return nil, err
		}
		etherIntegers[i] = v
	}

	age, err := readBigCounterPair(r)
	if err != nil {
		return nil, err
	}

	hasCounts := version == FormatVersion || version == "00001A" || version == "000019" || version == "000018"
	var spaces, branchesMain, branchesAlt world.BigCounter
	if hasCounts {
		if spaces, err = readBigCounterPair(r); err != nil {
			return nil, err
		}
		if branchesMain, err = readBigCounterPair(r); err != nil {
			return nil, err
		}
		if branchesAlt, err = readBigCounterPair(r); err != nil {
			return nil, err
		}
	}

	numCmdCounts, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	commandsCount := make(map[world.Command]world.BigCounter, numCmdCounts)
	for i := 0; i < numCmdCounts; i++ {
		code, err := readByteVal(r)
		if err != nil {
			return nil, err
		}
		if needsCommandCodeSwap {
			code = swapLegacyCommandCode(code)
		}
		cnt, err := readBigCounterPair(r)
		if err != nil {
			return nil, err
		}
		commandsCount[world.Command(code)] = cnt
	}

	constructionsCount := make(map[world.Construction]world.BigCounter)
	if hasCounts {
		numConCounts, err := readUsize(r)
		if err != nil {
			return nil, err
		}
		for i := 0; i < numConCounts; i++ {
			code, err := readByteVal(r)
			if err != nil {
				return nil, err
			}
			cnt, err := readBigCounterPair(r)
			if err != nil {
				return nil, err
			}
			constructionsCount[world.Construction(code)] = cnt
		}
	}

	pBackground, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	glitchBackground, err := readBigCounterPair(r)
	if err != nil {
		return nil, err
	}
	pReplicate, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	glitchReplicate, err := readBigCounterPair(r)
	if err != nil {
		return nil, err
	}
	pConstruct, err := readFloat64(r)
	if err != nil {
		return nil, err
	}
	glitchConstruct, err := readBigCounterPair(r)
	if err != nil {
		return nil, err
	}

	peers := world.NewPeerSet()
	if peers.ShareSize, err = readUsize(r); err != nil {
		return nil, err
	}
	if peers.ShareInterval, err = readInt(r); err != nil {
		return nil, err
	}
	if peers.LastShare, err = readInt(r); err != nil {
		return nil, err
	}
	if peers.SecretKey, err = readString(r); err != nil {
		return nil, err
	}
	port, err := readUint(r)
	if err != nil {
		return nil, err
	}
	peers.Port = uint16(port)
	torPort, err := readUint(r)
	if err != nil {
		return nil, err
	}
	peers.TorProxyPort = uint16(torPort)
	if peers.TorProxyHost, err = readString(r); err != nil {
		return nil, err
	}
	if peers.Exposed, err = readBool(r); err != nil {
		return nil, err
	}

	numOthers, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	peers.Others = make([]world.OtherPeer, numOthers)
	for i := range peers.Others {
		op, err := readOtherPeer(r)
		if err != nil {
			return nil, err
		}
		peers.Others[i] = op
	}

	numWhitelist, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	peers.Whitelist = make(map[string]bool, numWhitelist)
	for i := 0; i < numWhitelist; i++ {
		pk, err := readString(r)
		if err != nil {
			return nil, err
		}
		peers.Whitelist[pk] = true
	}

	if version == FormatVersion || version == "00001A" {
		if peers.InPermittedBeforeNum, err = readUint(r); err != nil {
			return nil, err
		}
		if peers.InAttemptedBeforeNum, err = readUint(r); err != nil {
			return nil, err
		}
	}

	fm := &world.FileIOMap{}
	numOutput, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	fm.Output = make([]world.IntegersFileMapping, numOutput)
	for i := range fm.Output {
		m, err := readFileMapping(r)
		if err != nil {
			return nil, err
		}
		fm.Output[i] = m
	}
	numInput, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	fm.Input = make([]world.IntegersFileMapping, numInput)
	for i := range fm.Input {
		m, err := readFileMapping(r)
		if err != nil {
			return nil, err
		}
		fm.Input[i] = m
	}

	w := &world.World{
		Arena:                 arena,
		Ether:                 &world.Ether{Optuids: etherOptuids, Integers: etherIntegers},
		CommandSwitch:         commandSwitch,
		Age:                   age,
		PBackground:           pBackground,
		PReplicate:            pReplicate,
		PConstruct:            pConstruct,
		GlitchBackgroundCount: glitchBackground,
		GlitchReplicateCount:  glitchReplicate,
		GlitchConstructCount:  glitchConstruct,
		CommandsCount:         commandsCount,
		ConstructionsCount:    constructionsCount,
		SpacesCount:           spaces,
		BranchesMainCount:     branchesMain,
		BranchesAltCount:      branchesAlt,
		FileMap:               fm,
		Peers:                 peers,
	}
	return w, nil
}

func readBigCounterPair(r *bufio.Reader) (world.BigCounter, error) {
	hi, lo, err := readBigCounter(r)
	if err != nil {
		return world.BigCounter{}, err
	}
	return world.BigCounter{Hi: hi, Lo: lo}, nil
}

func swapLegacyCommandCode(code uint8) uint8 {
	switch code {
	case legacySwapA1:
		return legacySwapA2
	case legacySwapA2:
		return legacySwapA1
	case legacySwapB1:
		return legacySwapB2
	case legacySwapB2:
		return legacySwapB1
	default:
		return code
	}
}

func readNode(r *bufio.Reader) (world.Node, error) {
	content, err := readByteVal(r)
	if err != nil {
		return world.Node{}, err
	}
	next, err := readOptUid(r)
	if err != nil {
		return world.Node{}, err
	}
	altNext, err := readOptUid(r)
	if err != nil {
		return world.Node{}, err
	}
	return world.Node{Content: content, Next: next, AltNext: altNext}, nil
}

func readController(r *bufio.Reader) (*world.Controller, error) {
	c := &world.Controller{}
	var err error
	if c.ChainStart, err = readOptUid(r); err != nil {
		return nil, err
	}
	if c.Exec, err = readOptUid(r); err != nil {
		return nil, err
	}
	data, err := readOptUidSliceFixed(r, len(c.Data))
	if err != nil {
		return nil, err
	}
	copy(c.Data[:], data)
	if c.IData, err = readUsize(r); err != nil {
		return nil, err
	}
	if c.NewChain, err = readOptUid(r); err != nil {
		return nil, err
	}
	hasNew, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if hasNew {
		nc, err := readController(r)
		if err != nil {
			return nil, err
		}
		c.NewController = nc
	}
	if c.Registers.Integer, err = readInt(r); err != nil {
		return nil, err
	}
	if c.Flags.Success, err = readBool(r); err != nil {
		return nil, err
	}
	optuids, err := readOptUidSliceFixed(r, len(c.Optuids))
	if err != nil {
		return nil, err
	}
	copy(c.Optuids[:], optuids)
	if c.IOptuid, err = readUsize(r); err != nil {
		return nil, err
	}
	integers, err := readIntSliceFixed(r, len(c.Integers))
	if err != nil {
		return nil, err
	}
	copy(c.Integers[:], integers)
	if c.IInteger, err = readUsize(r); err != nil {
		return nil, err
	}
	optuidChannels, err := readUsizeSliceFixed(r, len(c.OptuidChannels))
	if err != nil {
		return nil, err
	}
	copy(c.OptuidChannels[:], optuidChannels)
	if c.IOptuidChannel, err = readUsize(r); err != nil {
		return nil, err
	}
	if c.IPeer, err = readUsize(r); err != nil {
		return nil, err
	}
	integerChannels, err := readUsizeSliceFixed(r, len(c.IntegerChannels))
	if err != nil {
		return nil, err
	}
	copy(c.IntegerChannels[:], integerChannels)
	if c.IIntegerChannel, err = readUsize(r); err != nil {
		return nil, err
	}
	if c.Generation, err = readBigCounterPair(r); err != nil {
		return nil, err
	}
	if c.Ticks, err = readBigCounterPair(r); err != nil {
		return nil, err
	}
	return c, nil
}

func readOtherPeer(r *bufio.Reader) (world.OtherPeer, error) {
	var op world.OtherPeer
	var err error
	if op.PublicKey, err = readString(r); err != nil {
		return op, err
	}
	if op.Onion, err = readString(r); err != nil {
		return op, err
	}
	port, err := readUint(r)
	if err != nil {
		return op, err
	}
	op.Port = uint16(port)
	n, err := readUsize(r)
	if err != nil {
		return op, err
	}
	op.EtherIntegers = make([]world.Integer, n)
	for i := range op.EtherIntegers {
		v, err := readInt(r)
		if err != nil {
			return op, err
		}
		op.EtherIntegers[i] = v
	}
	if op.LastUpdate, err = readInt(r); err != nil {
		return op, err
	}
	return op, nil
}

func readFileMapping(r *bufio.Reader) (world.IntegersFileMapping, error) {
	var m world.IntegersFileMapping
	var err error
	if m.Start, err = readUsize(r); err != nil {
		return m, err
	}
	if m.Length, err = readUsize(r); err != nil {
		return m, err
	}
	if m.Interval, err = readInt(r); err != nil {
		return m, err
	}
	if m.Filepath, err = readString(r); err != nil {
		return m, err
	}
	if m.LastUpdate, err = readInt(r); err != nil {
		return m, err
	}
	return m, nil
}

func readOptUid(r *bufio.Reader) (world.OptUid, error) {
	v, err := readUint(r)
	if err != nil {
		return world.Absent, err
	}
	if v&0x80000000 == 0 {
		return world.Absent, nil
	}
	return world.Some(world.Uid(uint32(v) & 0x7FFFFFFF)), nil
}

func readOptUidSlice(r *bufio.Reader) ([]world.OptUid, error) {
	n, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	out := make([]world.OptUid, n)
	for i := range out {
		if out[i], err = readOptUid(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readOptUidSliceFixed(r *bufio.Reader, want int) ([]world.OptUid, error) {
	out, err := readOptUidSlice(r)
	if err != nil {
		return nil, err
	}
	if len(out) != want {
		return nil, fmt.Errorf("worldio: expected %d optuids, got %d", want, len(out))
	}
	return out, nil
}

func readIntSliceFixed(r *bufio.Reader, want int) ([]world.Integer, error) {
	n, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	if n != want {
		return nil, fmt.Errorf("worldio: expected %d integers, got %d", want, n)
	}
	out := make([]world.Integer, n)
	for i := range out {
		if out[i], err = readInt(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func readUsizeSliceFixed(r *bufio.Reader, want int) ([]int, error) {
	n, err := readUsize(r)
	if err != nil {
		return nil, err
	}
	if n != want {
		return nil, fmt.Errorf("worldio: expected %d entries, got %d", want, n)
	}
	out := make([]int, n)
	for i := range out {
		if out[i], err = readUsize(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}
