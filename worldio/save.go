package worldio

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/aelhometta/vm/world"
)

const signature = "aelhometta"

// FormatVersion is the current save-format version this package writes.
const FormatVersion = "00001B"

// loadableFormats lists every format version Load accepts, oldest last.
var loadableFormats = []string{FormatVersion, "00001A", "000019", "000018", "000017", "000016"}

func isLoadable(v string) bool {
	for _, f := range loadableFormats {
		if f == v {
			return true
		}
	}
	return false
}

// Save writes w's complete state to path in the bit-exact binary format
// (§6.1).
func Save(w *world.World, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("worldio: create %q: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := writeWorld(bw, w); err != nil {
		return fmt.Errorf("worldio: write %q: %w", path, err)
	}
	return bw.Flush()
}

// Load reads a world from path, applying whatever legacy migration its
// format version requires.
func Load(path string) (*world.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("worldio: open %q: %w", path, err)
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

// Read parses a world from an already-open reader, letting callers compose
// this with the archive-aware loader in archive.go.
func Read(br *bufio.Reader) (*world.World, error) {
	return readWorld(br)
}

func writeWorld(w *bufio.Writer, wd *world.World) error {
	if _, err := w.WriteString(signature); err != nil {
		return err
	}
	if _, err := w.WriteString(FormatVersion); err != nil {
		return err
	}

	a := wd.Arena
	if err := writeByte(w, a.MaxChainsBinlog()); err != nil {
		return err
	}
	if err := writeUint(w, uint64(a.NewNodeUid())); err != nil {
		return err
	}

	nodes := a.Nodes()
	if err := writeUsize(w, len(nodes)); err != nil {
		return err
	}
	for _, uid := range sortedUids(nodes) {
		if err := writeUint(w, uint64(uid)); err != nil {
			return err
		}
		if err := writeNode(w, nodes[uid]); err != nil {
			return err
		}
	}

	if err := writeOptUidSlice(w, a.NodesHistory()); err != nil {
		return err
	}
	if err := writeUsize(w, a.INodesHistory()); err != nil {
		return err
	}

	if err := writeUint(w, uint64(a.NewControllerUid())); err != nil {
		return err
	}
	controllers := a.Controllers()
	if err := writeUsize(w, len(controllers)); err != nil {
		return err
	}
	for _, uid := range sortedUids(controllers) {
		if err := writeUint(w, uint64(uid)); err != nil {
			return err
		}
		if err := writeController(w, controllers[uid]); err != nil {
			return err
		}
	}
	if err := writeOptUidSlice(w, a.ControllersHistory()); err != nil {
		return err
	}
	if err := writeUsize(w, a.IControllersHistory()); err != nil {
		return err
	}

	hi, lo := wd.CommandSwitch.AsUint128()
	if err := writeBigCounter(w, hi, lo); err != nil {
		return err
	}

	if err := writeOptUidSlice(w, wd.Ether.Optuids); err != nil {
		return err
	}
	if err := writeUsize(w, len(wd.Ether.Integers)); err != nil {
		return err
	}
	for _, v := range wd.Ether.Integers {
		if err := writeInt(w, v); err != nil {
			return err
		}
	}

	if err := writeBigCounter(w, wd.Age.Hi, wd.Age.Lo); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.SpacesCount.Hi, wd.SpacesCount.Lo); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.BranchesMainCount.Hi, wd.BranchesMainCount.Lo); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.BranchesAltCount.Hi, wd.BranchesAltCount.Lo); err != nil {
		return err
	}

	if err := writeUsize(w, len(wd.CommandsCount)); err != nil {
		return err
	}
	cmdCodes := make([]uint8, 0, len(wd.CommandsCount))
	for cmd := range wd.CommandsCount {
		cmdCodes = append(cmdCodes, uint8(cmd))
	}
	sort.Slice(cmdCodes, func(i, j int) bool { return cmdCodes[i] < cmdCodes[j] })
	for _, code := range cmdCodes {
		count := wd.CommandsCount[world.Command(code)]
		if err := writeByte(w, code); err != nil {
			return err
		}
		if err := writeBigCounter(w, count.Hi, count.Lo); err != nil {
			return err
		}
	}

	if err := writeUsize(w, len(wd.ConstructionsCount)); err != nil {
		return err
	}
	conCodes := make([]uint8, 0, len(wd.ConstructionsCount))
	for con := range wd.ConstructionsCount {
		conCodes = append(conCodes, uint8(con))
	}
	sort.Slice(conCodes, func(i, j int) bool { return conCodes[i] < conCodes[j] })
	for _, code := range conCodes {
		count := wd.ConstructionsCount[world.Construction(code)]
		if err := writeByte(w, code); err != nil {
			return err
		}
		if err := writeBigCounter(w, count.Hi, count.Lo); err != nil {
			return err
		}
	}

	if err := writeFloat64(w, wd.PBackground); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.GlitchBackgroundCount.Hi, wd.GlitchBackgroundCount.Lo); err != nil {
		return err
	}
	if err := writeFloat64(w, wd.PReplicate); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.GlitchReplicateCount.Hi, wd.GlitchReplicateCount.Lo); err != nil {
		return err
	}
	if err := writeFloat64(w, wd.PConstruct); err != nil {
		return err
	}
	if err := writeBigCounter(w, wd.GlitchConstructCount.Hi, wd.GlitchConstructCount.Lo); err != nil {
		return err
	}

	p := wd.Peers
	if err := writeUsize(w, p.ShareSize); err != nil {
		return err
	}
	if err := writeInt(w, p.ShareInterval); err != nil {
		return err
	}
	if err := writeInt(w, p.LastShare); err != nil {
		return err
	}
	if err := writeString(w, p.SecretKey); err != nil {
		return err
	}
	if err := writeUint(w, uint64(p.Port)); err != nil {
		return err
	}
	if err := writeUint(w, uint64(p.TorProxyPort)); err != nil {
		return err
	}
	if err := writeString(w, p.TorProxyHost); err != nil {
		return err
	}
	if err := writeBool(w, p.Exposed); err != nil {
		return err
	}

	if err := writeUsize(w, len(p.Others)); err != nil {
		return err
	}
	for _, op := range p.Others {
		if err := writeOtherPeer(w, op); err != nil {
			return err
		}
	}

	if err := writeUsize(w, len(p.Whitelist)); err != nil {
		return err
	}
	whitelist := make([]string, 0, len(p.Whitelist))
	for pk := range p.Whitelist {
		whitelist = append(whitelist, pk)
	}
	sort.Strings(whitelist)
	for _, pk := range whitelist {
		if err := writeString(w, pk); err != nil {
			return err
		}
	}

	if err := writeUint(w, p.InPermittedBeforeNum); err != nil {
		return err
	}
	if err := writeUint(w, p.InAttemptedBeforeNum); err != nil {
		return err
	}

	fm, _ := wd.FileMap.(*world.FileIOMap)
	var output, input []world.IntegersFileMapping
	if fm != nil {
		output, input = fm.Output, fm.Input
	}
	if err := writeUsize(w, len(output)); err != nil {
		return err
	}
	for _, m := range output {
		if err := writeFileMapping(w, m); err != nil {
			return err
		}
	}
	if err := writeUsize(w, len(input)); err != nil {
		return err
	}
	for _, m := range input {
		if err := writeFileMapping(w, m); err != nil {
			return err
		}
	}

	return nil
}

// sortedUids returns m's keys in ascending order, so that serialization
// never depends on Go's randomized map iteration order (§6.1's byte-exact
// format requires a deterministic write order, even though the arena itself
// has no concept of key ordering).
func sortedUids[V any](m map[world.Uid]V) []world.Uid {
	uids := make([]world.Uid, 0, len(m))
	for uid := range m {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids
}

func writeNode(w *bufio.Writer, n world.Node) error {
	if err := writeByte(w, n.Content); err != nil {
		return err
	}
	if err := writeOptUid(w, n.Next); err != nil {
		return err
	}
	return writeOptUid(w, n.AltNext)
}

func writeController(w *bufio.Writer, c *world.Controller) error {
	if err := writeOptUid(w, c.ChainStart); err != nil {
		return err
	}
	if err := writeOptUid(w, c.Exec); err != nil {
		return err
	}
	if err := writeOptUidArray(w, c.Data[:]); err != nil {
		return err
	}
	if err := writeUsize(w, c.IData); err != nil {
		return err
	}
	if err := writeOptUid(w, c.NewChain); err != nil {
		return err
	}
	if c.NewController != nil {
		if err := writeBool(w, true); err != nil {
			return err
		}
		if err := writeController(w, c.NewController); err != nil {
			return err
		}
	} else {
		if err := writeBool(w, false); err != nil {
			return err
		}
	}
	if err := writeInt(w, c.Registers.Integer); err != nil {
		return err
	}
	if err := writeBool(w, c.Flags.Success); err != nil {
		return err
	}
	if err := writeOptUidArray(w, c.Optuids[:]); err != nil {
		return err
	}
	if err := writeUsize(w, c.IOptuid); err != nil {
		return err
	}
	if err := writeIntArray(w, c.Integers[:]); err != nil {
		return err
	}
	if err := writeUsize(w, c.IInteger); err != nil {
		return err
	}
	if err := writeUsizeArray(w, c.OptuidChannels[:]); err != nil {
		return err
	}
	if err := writeUsize(w, c.IOptuidChannel); err != nil {
		return err
	}
	if err := writeUsize(w, c.IPeer); err != nil {
		return err
	}
	if err := writeUsizeArray(w, c.IntegerChannels[:]); err != nil {
		return err
	}
	if err := writeUsize(w, c.IIntegerChannel); err != nil {
		return err
	}
	if err := writeBigCounter(w, c.Generation.Hi, c.Generation.Lo); err != nil {
		return err
	}
	return writeBigCounter(w, c.Ticks.Hi, c.Ticks.Lo)
}

func writeOtherPeer(w *bufio.Writer, op world.OtherPeer) error {
	if err := writeString(w, op.PublicKey); err != nil {
		return err
	}
	if err := writeString(w, op.Onion); err != nil {
		return err
	}
	if err := writeUint(w, uint64(op.Port)); err != nil {
		return err
	}
	if err := writeUsize(w, len(op.EtherIntegers)); err != nil {
		return err
	}
	for _, v := range op.EtherIntegers {
		if err := writeInt(w, v); err != nil {
			return err
		}
	}
	return writeInt(w, op.LastUpdate)
}

func writeFileMapping(w *bufio.Writer, m world.IntegersFileMapping) error {
	if err := writeUsize(w, m.Start); err != nil {
		return err
	}
	if err := writeUsize(w, m.Length); err != nil {
		return err
	}
	if err := writeInt(w, m.Interval); err != nil {
		return err
	}
	if err := writeString(w, m.Filepath); err != nil {
		return err
	}
	return writeInt(w, m.LastUpdate)
}

func writeOptUid(w *bufio.Writer, o world.OptUid) error {
	if id, ok := o.Get(); ok {
		return writeUint(w, uint64(0x80000000|(uint32(id)&0x7FFFFFFF)))
	}
	return writeUint(w, 0)
}

func writeOptUidSlice(w *bufio.Writer, s []world.OptUid) error {
	if err := writeUsize(w, len(s)); err != nil {
		return err
	}
	for _, o := range s {
		if err := writeOptUid(w, o); err != nil {
			return err
		}
	}
	return nil
}

func writeOptUidArray(w *bufio.Writer, s []world.OptUid) error {
	if err := writeUsize(w, len(s)); err != nil {
		return err
	}
	for _, o := range s {
		if err := writeOptUid(w, o); err != nil {
			return err
		}
	}
	return nil
}

func writeIntArray(w *bufio.Writer, s []world.Integer) error {
	if err := writeUsize(w, len(s)); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeInt(w, v); err != nil {
			return err
		}
	}
	return nil
}

func writeUsizeArray(w *bufio.Writer, s []int) error {
	if err := writeUsize(w, len(s)); err != nil {
		return err
	}
	for _, v := range s {
		if err := writeUsize(w, v); err != nil {
			return err
		}
	}
	return nil
}
