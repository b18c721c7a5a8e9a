package index

import (
	"bufio"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/csvquery/csvlens/internal/model"
	"github.com/pierrec/lz4/v4"
)

// Checkpoint format: an 8-byte magic/version header, a fingerprint of
// the file the offsets describe, and an LZ4-compressed payload of
// little-endian int64 offsets. The fingerprint gates trust: a
// checkpoint is only loaded when it still matches the current file,
// which is what lets a relaunch against an unchanged file skip the
// full re-index.
const checkpointMagic = "CSVLIDX1"

// Fingerprint samples a file's head/middle/tail, cheap enough to run
// on every launch without reading the whole file.
type Fingerprint struct {
	Size  int64
	Mtime int64
	Hash  string
}

// ComputeFingerprint samples path's size, mtime and a SHA-1 over its
// head/middle/tail 512KiB windows.
func ComputeFingerprint(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return Fingerprint{}, err
	}
	size := stat.Size()
	const sample = 512 * 1024
	buf := make([]byte, sample)
	h := sha1.New()

	n, _ := f.ReadAt(buf, 0)
	h.Write(buf[:n])
	if size > sample*3 {
		n, _ = f.ReadAt(buf, size/2-sample/2)
		h.Write(buf[:n])
	}
	if size > sample {
		start := size - sample
		if start < 0 {
			start = 0
		}
		n, _ = f.ReadAt(buf, start)
		h.Write(buf[:n])
	}
	return Fingerprint{Size: size, Mtime: stat.ModTime().Unix(), Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// SaveCheckpoint writes idx's committed offsets to path, LZ4-block
// compressed, tagged with fp so a later launch can tell whether the
// checkpoint is still valid for the file it names.
func SaveCheckpoint(path string, idx *ByteIndex, fp Fingerprint) error {
	idx.mu.RLock()
	offsets := make([]int64, len(idx.offsets))
	copy(offsets, idx.offsets)
	complete := idx.complete
	idx.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	bw.WriteString(checkpointMagic)
	binary.Write(bw, binary.LittleEndian, fp.Size)
	binary.Write(bw, binary.LittleEndian, fp.Mtime)
	bw.WriteString(fp.Hash)
	var completeByte byte
	if complete {
		completeByte = 1
	}
	bw.WriteByte(completeByte)
	binary.Write(bw, binary.LittleEndian, int64(len(offsets)))

	lzw := lz4.NewWriter(bw)
	payload := make([]byte, 8*len(offsets))
	for i, o := range offsets {
		binary.LittleEndian.PutUint64(payload[i*8:], uint64(o))
	}
	if _, err := lzw.Write(payload); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	if err := lzw.Close(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return bw.Flush()
}

// LoadCheckpoint reads a checkpoint back, rejecting it (ok=false) if
// its fingerprint no longer matches the current file.
func LoadCheckpoint(path string, epoch uint64, wantFp Fingerprint) (idx *ByteIndex, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != checkpointMagic {
		return nil, false, nil
	}
	var size, mtime int64
	binary.Read(br, binary.LittleEndian, &size)
	binary.Read(br, binary.LittleEndian, &mtime)
	hashBuf := make([]byte, len(wantFp.Hash))
	if _, err := io.ReadFull(br, hashBuf); err != nil {
		return nil, false, nil
	}
	completeByte, _ := br.ReadByte()
	var count int64
	binary.Read(br, binary.LittleEndian, &count)

	if size != wantFp.Size || mtime != wantFp.Mtime || string(hashBuf) != wantFp.Hash {
		return nil, false, nil
	}

	lzr := lz4.NewReader(br)
	payload := make([]byte, 8*count)
	if _, err := readFull(lzr, payload); err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(payload[i*8:]))
	}
	b := &ByteIndex{offsets: offsets, complete: completeByte == 1, epoch: model.Epoch(epoch)}
	return b, true, nil
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
