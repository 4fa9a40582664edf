package file

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func tempFile(t *testing.T, size int64) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "blk.img"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestNew(t *testing.T) {
	f := tempFile(t, 1<<20)
	d, err := New(f)
	if err != nil {
		t.Fatal(err)
	}
	if d.BlockSize() != 512 {
		t.Errorf("BlockSize() = %d; want 512", d.BlockSize())
	}
	if d.Size() != 1<<20 {
		t.Errorf("Size() = %d; want %d", d.Size(), 1<<20)
	}
}

func TestNewSizeRejectsBadBlockSize(t *testing.T) {
	f := tempFile(t, 1<<20)
	for _, bs := range []int64{0, -512, 500, 513} {
		if _, err := NewSize(f, bs); err == nil {
			t.Errorf("NewSize(_, %d) succeeded; want error", bs)
		}
	}
}

func TestReadWrite(t *testing.T) {
	f := tempFile(t, 1<<20)
	d, err := NewSize(f, 1024)
	if err != nil {
		t.Fatal(err)
	}

	p := bytes.Repeat([]byte{0xc3}, 2048)
	if _, err := d.WriteAt(p, 4096); err != nil {
		t.Fatal(err)
	}
	if err := d.Flush(); err != nil {
		t.Fatal(err)
	}

	q := make([]byte, 2048)
	if _, err := d.ReadAt(q, 4096); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p, q) {
		t.Fatal("read back different data")
	}
}

func TestAlignment(t *testing.T) {
	f := tempFile(t, 1<<20)
	d, err := NewSize(f, 512)
	if err != nil {
		t.Fatal(err)
	}

	p := make([]byte, 512)
	if _, err := d.ReadAt(p, 100); err == nil {
		t.Error("unaligned offset accepted")
	}
	if _, err := d.WriteAt(p[:100], 0); err == nil {
		t.Error("unaligned length accepted")
	}
	if _, err := d.WriteAt(p, 1<<20); err == nil {
		t.Error("write past end accepted")
	}
}
