package world

import (
	"encoding/binary"
	"fmt"
	"os"
)

// IntegersFileMapping binds a contiguous range of integer ether channels to
// an on-disk file of little-endian 8-byte words, refreshed no more often
// than Interval microseconds apart (§4.5).
type IntegersFileMapping struct {
	Start        int
	Length       int
	Interval     int64 // microseconds; 0 means "once", until the first successful transfer
	Filepath     string
	LastUpdate   int64 // microseconds since Unix epoch
}

// ErrFileMappingOverlapsEther is returned when a mapping's channel range
// falls outside the integer ether.
var ErrFileMappingOverlapsEther = fmt.Errorf("file mapping channel range out of bounds")

// Validate checks a mapping's channel range against the ether's fixed size
// and rejects an empty filepath, per §7's host-facing validation rule.
func (m IntegersFileMapping) Validate() error {
	if m.Filepath == "" {
		return fmt.Errorf("file mapping: empty filepath")
	}
	if m.Start < 0 || m.Length <= 0 || m.Start+m.Length > NumIntegerChannels {
		return ErrFileMappingOverlapsEther
	}
	if m.Interval < 0 {
		return fmt.Errorf("file mapping: negative interval")
	}
	return nil
}

// FileIOMap is the default, file-backed FileMapCollaborator: it reads the
// Input mappings from disk into the integer ether and writes the Output
// mappings from the integer ether to disk, each gated by its own interval.
type FileIOMap struct {
	Output []IntegersFileMapping
	Input  []IntegersFileMapping
}

// Update implements FileMapCollaborator.
func (f *FileIOMap) Update(e *Ether, nowMicros int64) {
	for i := range f.Input {
		f.Input[i].readDue(e, nowMicros)
	}
	for i := range f.Output {
		f.Output[i].writeDue(e, nowMicros)
	}
}

func (m *IntegersFileMapping) due(now int64) bool {
	if m.Interval == 0 {
		return m.LastUpdate == 0
	}
	return now-m.LastUpdate >= m.Interval
}

func (m *IntegersFileMapping) readDue(e *Ether, now int64) {
	if !m.due(now) {
		return
	}
	data, err := os.ReadFile(m.Filepath)
	if err != nil {
		return // file-map collaborators are best-effort, no-op if unconfigured/unreadable
	}
	n := m.Length
	if max := len(data) / 8; max < n {
		n = max
	}
	for i := 0; i < n; i++ {
		v := int64(binary.LittleEndian.Uint64(data[i*8 : i*8+8]))
		e.Integers[m.Start+i] = v
	}
	m.LastUpdate = now
}

func (m *IntegersFileMapping) writeDue(e *Ether, now int64) {
	if !m.due(now) {
		return
	}
	buf := make([]byte, m.Length*8)
	for i := 0; i < m.Length; i++ {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], uint64(e.Integers[m.Start+i]))
	}
	if err := os.WriteFile(m.Filepath, buf, 0o644); err != nil {
		return
	}
	m.LastUpdate = now
}
