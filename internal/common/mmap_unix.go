//go:build !windows

package common

import (
	"os"

	"golang.org/x/sys/unix"
)

// MmapFile memory-maps a file read-only for zero-copy access. Used by
// the File source adapter and by the index checkpoint reader.
func MmapFile(f *os.File) ([]byte, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := stat.Size()
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// MunmapFile releases a mapping created by MmapFile.
func MunmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
