package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_CreateAllAndOpen(t *testing.T) {
	fsys := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "out", "nested", "viewshed.asc")

	w, err := CreateAll(fsys, path)
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if _, err := w.Write([]byte("ncols 1\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := fsys.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "ncols 1\n" {
		t.Errorf("expected 'ncols 1\\n', got %q", data)
	}

	if err := CheckSize(fsys, path, 8); err != nil {
		t.Errorf("CheckSize at limit failed: %v", err)
	}
	if err := CheckSize(fsys, path, 4); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestMemoryFileSystem_CreateAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := CreateAll(mfs, "/results/created.asc")
	if err != nil {
		t.Fatalf("CreateAll failed: %v", err)
	}
	if _, err := w.Write([]byte("created content")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if data, _ := mfs.ReadFile("/results/created.asc"); len(data) != 0 {
		t.Errorf("expected contents to stay hidden until Close, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := w.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}

	data, err := mfs.ReadFile("/results/created.asc")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "created content" {
		t.Errorf("expected 'created content', got %q", data)
	}

	if !mfs.Exists("/results") {
		t.Error("expected parent directory to exist")
	}
}

func TestMemoryFileSystem_CreateWithoutParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Create("/missing/dir/file.asc")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_OpenAndStat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/grids/dem.asc", []byte("hello"))

	f, err := mfs.Open("/grids/../grids/dem.asc")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	if err != nil || n != 3 || string(buf) != "hel" {
		t.Errorf("first Read = %d, %v, %q", n, err, buf[:n])
	}
	rest, err := io.ReadAll(f)
	if err != nil || string(rest) != "lo" {
		t.Errorf("ReadAll = %q, %v", rest, err)
	}

	info, err := mfs.Stat("/grids/dem.asc")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 5 || info.IsDir() || info.Name() != "dem.asc" {
		t.Errorf("unexpected file info: size=%d dir=%v name=%s", info.Size(), info.IsDir(), info.Name())
	}

	dir, err := mfs.Stat("/grids")
	if err != nil || !dir.IsDir() {
		t.Errorf("expected /grids to be a directory, got %v, %v", dir, err)
	}
	if err := CheckSize(mfs, "/grids", 0); err == nil {
		t.Error("expected CheckSize to reject a directory")
	}

	if _, err := mfs.Open("/nope.asc"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := CheckSize(mfs, "/nope.asc", 0); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist from CheckSize, got %v", err)
	}
}

func TestMemoryFileSystem_Files(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/b.asc", nil)
	mfs.WriteFile("/a/c.asc", nil)

	got := mfs.Files()
	if len(got) != 2 || got[0] != "/a/c.asc" || got[1] != "/b.asc" {
		t.Errorf("unexpected files %v", got)
	}
}

func TestFileSystemInterface(t *testing.T) {
	var _ FileSystem = OSFileSystem{}
	var _ FileSystem = NewMemoryFileSystem()
}
