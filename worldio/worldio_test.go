package worldio

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aelhometta/vm/world"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	w := world.NewWorld(4, 1)
	w.SetGlitchProbabilities(0.1, 0.2, 0.3)

	chain := w.Arena.AddNode(0) // Space
	cid := w.Spawn(chain)
	w.Tick(cid)
	w.Tick(world.Absent)

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.aelw")
	if err := Save(w, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Arena.NumNodes() != w.Arena.NumNodes() {
		t.Errorf("NumNodes: got %d, want %d", loaded.Arena.NumNodes(), w.Arena.NumNodes())
	}
	if loaded.Arena.NumControllers() != w.Arena.NumControllers() {
		t.Errorf("NumControllers: got %d, want %d", loaded.Arena.NumControllers(), w.Arena.NumControllers())
	}
	if loaded.Age != w.Age {
		t.Errorf("Age: got %+v, want %+v", loaded.Age, w.Age)
	}
	if loaded.PBackground != w.PBackground || loaded.PReplicate != w.PReplicate || loaded.PConstruct != w.PConstruct {
		t.Errorf("glitch probabilities did not round-trip: got %v/%v/%v", loaded.PBackground, loaded.PReplicate, loaded.PConstruct)
	}
	hiA, loA := loaded.CommandSwitch.AsUint128()
	hiB, loB := w.CommandSwitch.AsUint128()
	if hiA != hiB || loA != loB {
		t.Errorf("command switch did not round-trip")
	}
}

// TestScenarioD_SaveLoadRoundTrip builds a world with a controller, over 100
// nodes, ether values, one unexposed peer entry, and one file mapping, saves
// it, loads it back into a fresh world, and confirms re-saving the load
// produces byte-for-byte identical output.
func TestScenarioD_SaveLoadRoundTrip(t *testing.T) {
	w := world.NewWorld(8, 7)

	head := w.Arena.AddNode(0)
	prev := head
	for i := 0; i < 120; i++ {
		prev = w.Arena.AddNodeAfter(0, prev)
	}
	w.Spawn(head)

	w.Ether.Integers[0] = 42
	w.Ether.Optuids[0] = world.Some(world.Uid(1))

	w.Peers.Others = append(w.Peers.Others, world.OtherPeer{
		PublicKey: "peer-key", Port: 9001, EtherIntegers: []world.Integer{1, 2, 3},
	})
	// Peers.Exposed left false: this peer entry is configured but not shared.

	fm := &world.FileIOMap{
		Output: []world.IntegersFileMapping{{Start: 0, Length: 1, Filepath: filepath.Join(t.TempDir(), "out.bin")}},
	}
	w.FileMap = fm

	dir := t.TempDir()
	path := filepath.Join(dir, "w.aelw")
	if err := Save(w, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	resavePath := filepath.Join(dir, "w2.aelw")
	if err := Save(loaded, resavePath); err != nil {
		t.Fatalf("re-Save: %v", err)
	}

	want, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(resavePath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(want, got) {
		t.Error("re-saving a loaded world did not reproduce the original bytes")
	}
}

func TestLoadRejectsBadSignature(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.aelw")
	if err := os.WriteFile(path, []byte("not-a-save-file-at-all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error loading a file with a bad signature")
	}
}

func TestULEB128RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 0x7F, 0x80, 0xFF, 1 << 20, ^uint64(0)}
	for _, v := range values {
		var buf bytes.Buffer
		bw := bufio.NewWriter(&buf)
		if err := writeUint(bw, v); err != nil {
			t.Fatalf("writeUint(%d): %v", v, err)
		}
		bw.Flush()

		br := bufio.NewReader(&buf)
		got, err := readUint(br)
		if err != nil {
			t.Fatalf("readUint(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round-trip %d: got %d", v, got)
		}
	}
}

func TestSnapshotGzipRoundTrip(t *testing.T) {
	w := world.NewWorld(4, 1)
	chain := w.Arena.AddNode(0)
	w.Spawn(chain)

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.aelw.gz")
	if err := SaveSnapshot(w, path, SnapshotGzip); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Arena.NumNodes() != w.Arena.NumNodes() {
		t.Errorf("NumNodes: got %d, want %d", loaded.Arena.NumNodes(), w.Arena.NumNodes())
	}
	if loaded.Arena.NumControllers() != w.Arena.NumControllers() {
		t.Errorf("NumControllers: got %d, want %d", loaded.Arena.NumControllers(), w.Arena.NumControllers())
	}
}

func TestLoadSnapshotRawPassthrough(t *testing.T) {
	w := world.NewWorld(4, 1)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.aelw")
	if err := Save(w, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := LoadSnapshot(path); err != nil {
		t.Fatalf("LoadSnapshot on a bare save: %v", err)
	}
}

func TestLegacyCommandCodeSwap(t *testing.T) {
	cases := map[uint8]uint8{18: 19, 19: 18, 61: 62, 62: 61, 5: 5}
	for in, want := range cases {
		if got := swapLegacyCommandCode(in); got != want {
			t.Errorf("swapLegacyCommandCode(%d): got %d, want %d", in, got, want)
		}
	}
}
