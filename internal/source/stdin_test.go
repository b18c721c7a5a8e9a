package source

import (
	"io"
	"os"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamedStdinSpillsIncrementally(t *testing.T) {
	pr, pw := io.Pipe()
	s, err := NewStreamedStdin(pr, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := pw.Write([]byte("a,b\n1,x")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first chunk to spill", func() bool { return s.Size() == 7 })
	if s.IsFinalized() {
		t.Fatal("must not be finalized while the pipe is open")
	}

	// Reading past the spilled size is a retry, not EOF.
	buf := make([]byte, 16)
	if _, err := s.ReadAt(buf, 7); err == nil {
		t.Fatal("expected an error reading past available bytes")
	} else if _, ok := err.(ErrNotYetAvailable); !ok {
		t.Fatalf("expected ErrNotYetAvailable, got %v", err)
	}

	if _, err := pw.Write([]byte("\n2,y\n")); err != nil {
		t.Fatal(err)
	}
	pw.Close()
	waitFor(t, "EOF to finalize the spill", s.IsFinalized)

	n, err := s.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "a,b\n1,x\n2,y\n" {
		t.Fatalf("spilled bytes = %q", got)
	}
	if _, err := s.ReadAt(buf, s.Size()); err != io.EOF {
		t.Fatalf("reads past the end of a finalized spill must EOF, got %v", err)
	}
}

func TestStreamedStdinCloseRemovesSpillFile(t *testing.T) {
	pr, pw := io.Pipe()
	s, err := NewStreamedStdin(pr, false)
	if err != nil {
		t.Fatal(err)
	}
	name := s.tmp.Name()
	pw.Close()
	waitFor(t, "EOF", s.IsFinalized)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		t.Fatalf("spill file %s must be removed on Close", name)
	}
}

func TestFileAdapterReadsAndSizes(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "csvlens-file-*.csv")
	if err != nil {
		t.Fatal(err)
	}
	const content = "a,b\n1,x\n"
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
	f.Close()

	a, err := OpenFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.Size() != int64(len(content)) {
		t.Fatalf("Size() = %d, want %d", a.Size(), len(content))
	}
	if !a.IsFinalized() {
		t.Fatal("a plain file is always finalized")
	}
	buf := make([]byte, 4)
	if n, err := a.ReadAt(buf, 4); err != nil && err != io.EOF {
		t.Fatal(err)
	} else if string(buf[:n]) != "1,x\n" {
		t.Fatalf("ReadAt(4) = %q", buf[:n])
	}
}
