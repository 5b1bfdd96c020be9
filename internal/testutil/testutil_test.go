// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestMustWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := MustWriteFile(t, dir, "a/b/c.txt", "hello")
	if want := filepath.Join(dir, "a", "b", "c.txt"); path != want {
		t.Errorf("MustWriteFile() = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("file content = %q, %v", data, err)
	}
}

func TestCloseOnCleanup(t *testing.T) {
	t.Parallel()

	closed := false
	t.Run("inner", func(t *testing.T) {
		CloseOnCleanup(t, closerFunc(func() error {
			closed = true
			return errors.New("ignored")
		}))
	})
	if !closed {
		t.Error("closer should run when the subtest finishes")
	}
}

func TestFakeClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start, time.Minute)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("first Now() = %v, want %v", got, start)
	}
	if got := c.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Errorf("second Now() = %v, want one step later", got)
	}

	c.Advance(time.Hour)
	if got := c.Peek(); !got.Equal(start.Add(2*time.Minute + time.Hour)) {
		t.Errorf("Peek() after Advance = %v", got)
	}

	c.Set(start)
	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() after Set = %v, want %v", got, start)
	}

	if got := NewFakeClock(time.Time{}, 0).Now(); got.IsZero() {
		t.Error("zero initial time should be replaced with a reference time")
	}
}

func TestSetHomeDir(t *testing.T) {
	dir := t.TempDir()
	SetHomeDir(t, dir)

	key := "HOME"
	if runtime.GOOS == "windows" {
		key = "USERPROFILE"
	}
	if got := os.Getenv(key); got != dir {
		t.Errorf("%s = %q, want %q", key, got, dir)
	}
}

func TestContainerParallelism(t *testing.T) {
	t.Setenv("SCRIPTVAULT_TEST_CONTAINER_PARALLEL", "5")
	if got := containerParallelism(); got != 5 {
		t.Errorf("containerParallelism() = %d, want 5", got)
	}

	t.Setenv("SCRIPTVAULT_TEST_CONTAINER_PARALLEL", "bogus")
	if got := containerParallelism(); got < 1 || got > 2 {
		t.Errorf("containerParallelism() = %d, want fallback in [1,2]", got)
	}
}
