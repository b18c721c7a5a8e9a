//go:build windows

package common

import (
	"io"
	"os"
)

// MmapFile falls back to a full read on Windows, where mapping a file
// that may be concurrently rewritten (streaming/auto-reload) needs
// syscall plumbing beyond what this project's scope calls for.
func MmapFile(f *os.File) ([]byte, error) {
	return io.ReadAll(f)
}

// MunmapFile is a no-op for the read-all fallback.
func MunmapFile(data []byte) error {
	return nil
}
