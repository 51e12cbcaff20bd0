package diskio_test

import (
	"bytes"
	"testing"

	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/diskio"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := diskio.NewManager(dir)

	data := make([]byte, config.PageSize)
	copy(data, []byte("hello page"))
	if err := m.WritePage("t.bin", 0, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err := m.ReadPage("t.bin", 0)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestReadPastHighWaterMarkReturnsNil(t *testing.T) {
	dir := t.TempDir()
	m := diskio.NewManager(dir)
	got, err := m.ReadPage("t.bin", 5)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil page past high water mark, got %d bytes", len(got))
	}
}

func TestWriteGrowsFileAndUpdatesHighWaterMark(t *testing.T) {
	dir := t.TempDir()
	m := diskio.NewManager(dir)
	data := make([]byte, config.PageSize)
	if err := m.WritePage("t.bin", 2, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	n, err := m.HighWaterPageCount("t.bin")
	if err != nil {
		t.Fatalf("HighWaterPageCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pages got %d", n)
	}
}

func TestTruncateResetsFile(t *testing.T) {
	dir := t.TempDir()
	m := diskio.NewManager(dir)
	data := make([]byte, config.PageSize)
	if err := m.WritePage("t.bin", 0, data); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := m.Truncate("t.bin"); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	n, err := m.HighWaterPageCount("t.bin")
	if err != nil {
		t.Fatalf("HighWaterPageCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 pages after truncate got %d", n)
	}
}
