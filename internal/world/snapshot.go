package world

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const (
	snapshotOpUnload byte = 0
	snapshotOpSet    byte = 1

	snapshotHeaderSize = 13
	// A column holds at most a few hundred entries; anything larger is damage.
	maxSnapshotRecord = 1 << 20
)

// ErrCorruptSnapshot reports a snapshot that ends mid-record or holds an
// unknown record type.
var ErrCorruptSnapshot = errors.New("corrupt map snapshot")

// WriteSnapshot writes every loaded column to w as a framed record, in row
// order. Each record is an op byte, the column's x and y, the payload size and
// the gob-encoded entries.
func (m *MemoryMap) WriteSnapshot(w io.Writer) error {
	points := make([]Point, 0, m.Len())
	m.ForEach(func(p Point, _ []Entry) bool {
		points = append(points, p)
		return true
	})
	sort.Slice(points, func(i, j int) bool {
		if points[i].Y != points[j].Y {
			return points[i].Y < points[j].Y
		}
		return points[i].X < points[j].X
	})

	bw := bufio.NewWriter(w)
	var payload bytes.Buffer
	for _, p := range points {
		column, ok := m.Column(p.X, p.Y)
		if !ok {
			continue
		}
		payload.Reset()
		if err := gob.NewEncoder(&payload).Encode(column); err != nil {
			return fmt.Errorf("encode column %v: %w", p, err)
		}
		if err := writeRecord(bw, snapshotOpSet, p, payload.Bytes()); err != nil {
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// WriteUnload appends a record that drops the column at p when replayed.
func WriteUnload(w io.Writer, p Point) error {
	return writeRecord(w, snapshotOpUnload, p, nil)
}

func writeRecord(w io.Writer, op byte, p Point, payload []byte) error {
	if len(payload) > maxSnapshotRecord {
		return fmt.Errorf("column %v encodes to %d bytes, limit %d", p, len(payload), maxSnapshotRecord)
	}
	var header [snapshotHeaderSize]byte
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], uint32(int32(p.X)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(int32(p.Y)))
	binary.LittleEndian.PutUint32(header[9:13], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}

// ReadSnapshot replays the records in r onto m. Later records win, so
// snapshots may be followed by incremental changes.
func (m *MemoryMap) ReadSnapshot(r io.Reader) error {
	br := bufio.NewReader(r)
	var header [snapshotHeaderSize]byte
	var payload []byte
	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				return nil
			}
			if err == io.ErrUnexpectedEOF {
				return fmt.Errorf("%w: truncated record header", ErrCorruptSnapshot)
			}
			return fmt.Errorf("read record header: %w", err)
		}
		op := header[0]
		p := Point{
			X: int(int32(binary.LittleEndian.Uint32(header[1:5]))),
			Y: int(int32(binary.LittleEndian.Uint32(header[5:9]))),
		}
		size := binary.LittleEndian.Uint32(header[9:13])

		if size > maxSnapshotRecord {
			return fmt.Errorf("%w: record for %v claims %d bytes", ErrCorruptSnapshot, p, size)
		}
		if cap(payload) < int(size) {
			payload = make([]byte, size)
		}
		payload = payload[:size]
		if _, err := io.ReadFull(br, payload); err != nil {
			return fmt.Errorf("%w: truncated payload for %v", ErrCorruptSnapshot, p)
		}

		switch op {
		case snapshotOpSet:
			var column []Entry
			if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&column); err != nil {
				return fmt.Errorf("%w: decode column %v: %v", ErrCorruptSnapshot, p, err)
			}
			m.SetColumn(p.X, p.Y, column...)
		case snapshotOpUnload:
			m.Unload(p.X, p.Y)
		default:
			return fmt.Errorf("%w: unknown record type %d", ErrCorruptSnapshot, op)
		}
	}
}

// SaveSnapshot writes m to path, creating parent directories as needed.
func SaveSnapshot(path string, m *MemoryMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := m.WriteSnapshot(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a map previously written by SaveSnapshot.
func LoadSnapshot(path string) (*MemoryMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	m := NewMemoryMap()
	if err := m.ReadSnapshot(f); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return m, nil
}
