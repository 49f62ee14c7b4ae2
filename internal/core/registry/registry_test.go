package registry

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRegisterResolveRemove(t *testing.T) {
	root := t.TempDir()
	reg := New(root)
	path := filepath.Join(root, "task", "song.mp3")
	writeFile(t, path, 10)

	e, err := reg.Register(path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d; want 1", reg.Len())
	}

	got, err := reg.Resolve(e.ID)
	if err != nil || got.Path != path {
		t.Fatalf("Resolve = %+v, %v", got, err)
	}

	if _, ok := reg.Remove(e.ID); !ok {
		t.Fatal("first Remove should win")
	}
	if _, ok := reg.Remove(e.ID); ok {
		t.Fatal("second Remove should lose")
	}
	if _, err := reg.Resolve(e.ID); err != ErrNotFound {
		t.Errorf("Resolve after Remove = %v; want ErrNotFound", err)
	}
}

func TestRegisterIDsAreUnique(t *testing.T) {
	reg := New("")
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		e, err := reg.Register("/tmp/x")
		if err != nil {
			t.Fatal(err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestRemoveConcurrent(t *testing.T) {
	reg := New("")
	e, _ := reg.Register("/tmp/x")

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := reg.Remove(e.ID); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("Remove won %d times; want exactly 1", wins)
	}
}

func TestReleasePrunesEmptyParents(t *testing.T) {
	root := t.TempDir()
	reg := New(root)
	task := filepath.Join(root, "task")
	path := filepath.Join(task, "ABC", "video.mp4")
	writeFile(t, path, 10)

	e, _ := reg.Register(path)
	reg.Release(e.ID, path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be deleted")
	}
	if _, err := os.Stat(task); !os.IsNotExist(err) {
		t.Error("empty task dir should be pruned")
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("root must never be removed")
	}
	if _, err := reg.Resolve(e.ID); err != ErrNotFound {
		t.Error("entry should be gone after release")
	}
}

func TestReleaseKeepsNonEmptyParent(t *testing.T) {
	root := t.TempDir()
	reg := New(root)
	task := filepath.Join(root, "task")
	a := filepath.Join(task, "a.mp4")
	b := filepath.Join(task, "b.jpg")
	writeFile(t, a, 1)
	writeFile(t, b, 1)

	e, _ := reg.Register(a)
	reg.Release(e.ID, a)

	if _, err := os.Stat(b); err != nil {
		t.Error("sibling file must survive")
	}
	if _, err := os.Stat(task); err != nil {
		t.Error("non-empty task dir must survive")
	}
}

func TestReleaseLostRaceDeletesNothing(t *testing.T) {
	root := t.TempDir()
	reg := New(root)
	path := filepath.Join(root, "task", "a.mp4")
	writeFile(t, path, 1)

	e, _ := reg.Register(path)
	reg.Remove(e.ID)

	// the caller that lost the entry must not touch the file
	reg.Release(e.ID, path)
	if _, err := os.Stat(path); err != nil {
		t.Error("file was deleted by a caller that did not own the entry")
	}
}

func TestReleaseRefusesOutsideRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "keep.txt")
	writeFile(t, outside, 1)

	reg := New(root)
	reg.Release("", outside)
	if _, err := os.Stat(outside); err != nil {
		t.Error("file outside the root must not be deleted")
	}

	reg.Release("", filepath.Join(root, "..", filepath.Base(filepath.Dir(outside)), "keep.txt"))
	if _, err := os.Stat(outside); err != nil {
		t.Error("traversal out of the root must not delete")
	}
}

func TestReleaseRefusesSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outsideDir := t.TempDir()
	target := filepath.Join(outsideDir, "keep.txt")
	writeFile(t, target, 1)

	link := filepath.Join(root, "link")
	if err := os.Symlink(outsideDir, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	New(root).Release("", filepath.Join(link, "keep.txt"))
	if _, err := os.Stat(target); err != nil {
		t.Error("file reached through a symlink out of the root must not be deleted")
	}
}

func TestReaperRemovesExpired(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	reg := New(root, WithClock(func() time.Time { return now }))

	oldPath := filepath.Join(root, "old", "a.mp4")
	writeFile(t, oldPath, 1)
	old, _ := reg.Register(oldPath)

	now = start.Add(50 * time.Minute)
	freshPath := filepath.Join(root, "fresh", "b.mp4")
	writeFile(t, freshPath, 1)
	fresh, _ := reg.Register(freshPath)

	rp := NewReaper(reg, time.Hour, time.Minute)
	stats := rp.SweepOnce(start.Add(61 * time.Minute))

	if stats.Expired != 1 {
		t.Errorf("Expired = %d; want 1", stats.Expired)
	}
	if _, err := reg.Resolve(old.ID); err != ErrNotFound {
		t.Error("expired entry should be gone")
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expired file should be deleted")
	}
	if _, err := reg.Resolve(fresh.ID); err != nil {
		t.Error("fresh entry should survive")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Error("fresh file should survive")
	}
}

func TestReaperSweepsOrphans(t *testing.T) {
	root := t.TempDir()
	reg := New(root)

	orphan := filepath.Join(root, "orphan")
	writeFile(t, filepath.Join(orphan, "cookies.txt"), 1)
	livePath := filepath.Join(root, "live", "a.mp4")
	writeFile(t, livePath, 1)
	reg.Register(livePath)
	writeFile(t, filepath.Join(root, JournalFile), 1)

	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{orphan, filepath.Join(root, "live")} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	stats := NewReaper(reg, time.Hour, time.Minute).SweepOnce(time.Now())
	if stats.Orphans != 1 {
		t.Errorf("Orphans = %d; want 1", stats.Orphans)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphan dir should be removed")
	}
	if _, err := os.Stat(livePath); err != nil {
		t.Error("dir holding a live entry must survive")
	}
	if _, err := os.Stat(filepath.Join(root, JournalFile)); err != nil {
		t.Error("journal must survive")
	}
}

func TestReaperSkipsHeldDirs(t *testing.T) {
	root := t.TempDir()
	reg := New(root)

	busy := filepath.Join(root, "busy")
	partial := filepath.Join(busy, "Video.mp4.part")
	writeFile(t, partial, 1)
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(busy, old, old); err != nil {
		t.Fatal(err)
	}

	reg.Hold(busy)
	rp := NewReaper(reg, time.Hour, time.Minute)
	if stats := rp.SweepOnce(time.Now()); stats.Orphans != 0 {
		t.Errorf("Orphans = %d; want 0 while held", stats.Orphans)
	}
	if err := os.Rename(partial, filepath.Join(busy, "Video.mp4")); err != nil {
		t.Fatalf("held workdir was swept: %v", err)
	}

	reg.Hold(busy)
	reg.Unhold(busy)
	if len(reg.Held()) != 1 {
		t.Fatalf("Held() = %v; one hold should remain", reg.Held())
	}
	reg.Unhold(busy)
	if err := os.Chtimes(busy, old, old); err != nil {
		t.Fatal(err)
	}
	if stats := rp.SweepOnce(time.Now()); stats.Orphans != 1 {
		t.Errorf("Orphans = %d; want 1 once released", stats.Orphans)
	}
}

func TestReaperStartStop(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	reg := New(root, WithClock(func() time.Time { return now }))
	path := filepath.Join(root, "t", "a.mp4")
	writeFile(t, path, 1)
	reg.Register(path)
	now = now.Add(2 * time.Hour)

	rp := NewReaper(reg, time.Hour, 10*time.Millisecond)
	rp.Start()
	deadline := time.Now().Add(2 * time.Second)
	for reg.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	rp.Stop()
	rp.Stop()

	if reg.Len() != 0 {
		t.Error("running reaper should have removed the expired entry")
	}
}

func TestJournalRestore(t *testing.T) {
	root := t.TempDir()
	j, err := OpenJournal(filepath.Join(root, JournalFile))
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}

	reg := New(root, WithJournal(j))
	keep := filepath.Join(root, "t1", "a.mp4")
	gone := filepath.Join(root, "t2", "b.mp4")
	writeFile(t, keep, 1)
	writeFile(t, gone, 1)
	kept, _ := reg.Register(keep)
	reg.Register(gone)
	consumed, _ := reg.Register(keep)
	reg.Remove(consumed.ID)
	os.Remove(gone)
	reg.Close()

	j2, err := OpenJournal(filepath.Join(root, JournalFile))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	restored := New(root, WithJournal(j2))
	defer restored.Close()

	n, err := restored.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Fatalf("restored %d entries; want 1", n)
	}
	e, err := restored.Resolve(kept.ID)
	if err != nil || e.Path != keep {
		t.Errorf("Resolve(kept) = %+v, %v", e, err)
	}
	if !e.CreatedAt.Equal(kept.CreatedAt) {
		t.Errorf("CreatedAt = %v; want %v", e.CreatedAt, kept.CreatedAt)
	}
}
