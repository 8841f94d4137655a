package worldio

import (
	"archive/zip"
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zstd"
	"github.com/nwaples/rardecode/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/aelhometta/vm/world"
)

// Magic bytes for archive-format detection (§10.7 snapshot loading).
var (
	magicZIP  = []byte{0x50, 0x4B, 0x03, 0x04}
	magic7z   = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip = []byte{0x1F, 0x8B}
	magicRAR  = []byte{0x52, 0x61, 0x72, 0x21}
	magicXZ   = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}
	magicZstd = []byte{0x28, 0xB5, 0x2F, 0xFD}
	magicLZ4  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// ErrNoSnapshotFile is returned when a container archive holds no member
// this package recognizes as a save file.
var ErrNoSnapshotFile = errors.New("worldio: no snapshot file found in archive")

// snapshotName reports whether an archive member name looks like one of our
// own saves, by extension, so a multi-file archive doesn't hand back an
// unrelated member.
func snapshotName(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".aelw" || ext == ".world" || ext == ".bin"
}

// LoadSnapshot loads a world from path, auto-detecting gzip/zip/7z/rar/xz/
// zstd/lz4/brotli container formats and transparently unwrapping them before
// handing the inner bytes to Read. A bare, uncompressed save loads exactly
// as Load does. It never alters the bit-exact inner stream format (§6.1) —
// it only changes what bytes reach the disk.
func LoadSnapshot(path string) (*world.World, error) {
	raw, err := readAll(path)
	if err != nil {
		return nil, fmt.Errorf("worldio: read %q: %w", path, err)
	}

	inner, err := unwrap(raw, path)
	if err != nil {
		return nil, err
	}
	return Read(bufio.NewReader(bytes.NewReader(inner)))
}

// SnapshotFormat selects the compression SaveSnapshot wraps a save stream in.
type SnapshotFormat int

const (
	// SnapshotRaw writes an unwrapped save stream, identical to Save.
	SnapshotRaw SnapshotFormat = iota
	// SnapshotGzip wraps the save stream in gzip.
	SnapshotGzip
	// SnapshotZstd wraps the save stream in zstd.
	SnapshotZstd
)

// SaveSnapshot writes w to path, optionally wrapped in a compressed archive
// for operators who want compact world dumps. The inner bytes are exactly
// what Save would write; only the container changes.
func SaveSnapshot(w *world.World, path string, format SnapshotFormat) error {
	var inner bytes.Buffer
	bw := bufio.NewWriter(&inner)
	if err := writeWorld(bw, w); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("worldio: flush: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("worldio: create %q: %w", path, err)
	}
	defer f.Close()

	switch format {
	case SnapshotGzip:
		gw := gzip.NewWriter(f)
		if _, err := gw.Write(inner.Bytes()); err != nil {
			return fmt.Errorf("worldio: gzip write: %w", err)
		}
		return gw.Close()
	case SnapshotZstd:
		zw, err := zstd.NewWriter(f)
		if err != nil {
			return fmt.Errorf("worldio: zstd writer: %w", err)
		}
		if _, err := zw.Write(inner.Bytes()); err != nil {
			return fmt.Errorf("worldio: zstd write: %w", err)
		}
		return zw.Close()
	default:
		_, err := f.Write(inner.Bytes())
		return err
	}
}

func readAll(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// unwrap strips at most one layer of container compression/archiving,
// returning the bytes of the first member whose name looks like a save, or
// the whole payload when the format carries no member names (gzip/xz/zstd/
// lz4/brotli).
func unwrap(raw []byte, path string) ([]byte, error) {
	switch {
	case bytes.HasPrefix(raw, magicGzip):
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("worldio: gzip: %w", err)
		}
		defer gr.Close()
		return io.ReadAll(gr)

	case bytes.HasPrefix(raw, magicXZ):
		xr, err := xz.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("worldio: xz: %w", err)
		}
		return io.ReadAll(xr)

	case bytes.HasPrefix(raw, magicZstd):
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("worldio: zstd: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)

	case bytes.HasPrefix(raw, magicLZ4):
		lr := lz4.NewReader(bytes.NewReader(raw))
		return io.ReadAll(lr)

	case bytes.HasPrefix(raw, magicZIP):
		return unwrapZip(raw)

	case bytes.HasPrefix(raw, magic7z):
		return unwrapSevenZip(path)

	case bytes.HasPrefix(raw, magicRAR):
		return unwrapRAR(path)

	default:
		// Brotli carries no reliable magic; fall back to extension.
		if strings.EqualFold(filepath.Ext(path), ".br") {
			return io.ReadAll(brotli.NewReader(bytes.NewReader(raw)))
		}
		return raw, nil
	}
}

func unwrapZip(raw []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("worldio: zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !snapshotName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("worldio: zip: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, ErrNoSnapshotFile
}

func unwrapSevenZip(path string) ([]byte, error) {
	zr, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("worldio: 7z: %w", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !snapshotName(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("worldio: 7z: open %s: %w", f.Name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, ErrNoSnapshotFile
}

func unwrapRAR(path string) ([]byte, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("worldio: rar: %w", err)
	}
	defer r.Close()
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("worldio: rar: %w", err)
		}
		if header.IsDir || !snapshotName(header.Name) {
			continue
		}
		return io.ReadAll(r)
	}
	return nil, ErrNoSnapshotFile
}
