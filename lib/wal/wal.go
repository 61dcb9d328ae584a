// Package wal implements the WAL collaborator (spec.md §6): an append-only,
// zstd-compressed log of every committed put/remove/create, grounded on
// lib/db/engines/maple.Save/Load's binary framing (magic number, version
// byte, length-prefixed records written with encoding/binary) but append
// rather than snapshot oriented, the way a write-ahead log needs to be.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/DataDog/zstd"
	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
)

const (
	magicNum   = "IGNWAL\x00\x00"
	walVersion = 1
)

// Writer is an append-only WAL backed by a single file. Each record's value
// is compressed independently with zstd before being framed (type, key and
// version are written uncompressed), so a reader can
// recover every record written before a crash even if the last one is
// truncated mid-write.
type Writer struct {
	mu sync.Mutex
	f  *os.File
	bw *bufio.Writer
}

// Open opens (creating if necessary) the WAL file at path, writing the
// header if the file is new.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := &Writer{f: f, bw: bufio.NewWriterSize(f, 64*1024)}
	if info.Size() == 0 {
		if err := w.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) writeHeader() error {
	if _, err := w.f.WriteString(magicNum); err != nil {
		return err
	}
	return binary.Write(w.f, binary.LittleEndian, uint8(walVersion))
}

// Log implements cacheentry.WAL: it frames rec and appends it, flushing
// before returning so a successful Log call means the record is durable on
// the OS page cache (spec.md's ambient durability expectation for a
// committed write).
func (w *Writer) Log(rec cacheentry.DataRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	compressed, err := zstd.Compress(nil, rec.Value)
	if err != nil {
		return fmt.Errorf("wal: compress value: %w", err)
	}

	if err := binary.Write(w.bw, binary.LittleEndian, uint8(rec.Type)); err != nil {
		return err
	}
	if err := writeBytes(w.bw, []byte(rec.Key)); err != nil {
		return err
	}
	if err := writeVersion(w.bw, rec.Ver); err != nil {
		return err
	}
	if err := writeBytes(w.bw, compressed); err != nil {
		return err
	}
	return w.bw.Flush()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeVersion(w io.Writer, v version.Version) error {
	for _, field := range []any{v.TopologyVersion, v.GlobalTime, v.Order, v.NodeOrder, v.DataCenterId} {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return err
		}
	}
	return nil
}

func readVersion(r io.Reader) (version.Version, error) {
	var v version.Version
	if err := binary.Read(r, binary.LittleEndian, &v.TopologyVersion); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.GlobalTime); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.Order); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.NodeOrder); err != nil {
		return v, err
	}
	if err := binary.Read(r, binary.LittleEndian, &v.DataCenterId); err != nil {
		return v, err
	}
	return v, nil
}

// Replay reads every record from a WAL file at path in order, calling fn
// for each. It stops and returns nil at the first truncated or otherwise
// unreadable record, on the theory that a WAL is only ever read after a
// crash and a partial tail record is expected, not an error (mirrors how
// mapleImpl.Load treats its own length-prefixed records as the unit of
// recovery).
func Replay(path string, fn func(cacheentry.DataRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 64*1024)

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("wal: %s: bad magic number", path)
	}

	var ver uint8
	if err := binary.Read(br, binary.LittleEndian, &ver); err != nil {
		return nil
	}
	if ver != walVersion {
		return fmt.Errorf("wal: %s: unsupported version %d", path, ver)
	}

	for {
		var rtype uint8
		if err := binary.Read(br, binary.LittleEndian, &rtype); err != nil {
			return nil
		}
		key, err := readBytes(br)
		if err != nil {
			return nil
		}
		recVer, err := readVersion(br)
		if err != nil {
			return nil
		}
		compressed, err := readBytes(br)
		if err != nil {
			return nil
		}
		value, err := zstd.Decompress(nil, compressed)
		if err != nil {
			return fmt.Errorf("wal: %s: decompress record for key %q: %w", path, key, err)
		}

		if err := fn(cacheentry.DataRecord{
			Type:  cacheentry.RecordType(rtype),
			Key:   string(key),
			Value: value,
			Ver:   recVer,
		}); err != nil {
			return err
		}
	}
}
