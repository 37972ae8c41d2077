// Package testing provides test utilities for the saga project.
//
// Import it under another name to avoid shadowing the standard library:
//
//	import sagatest "github.com/xtxerr/saga/internal/testing"
package testing

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Clock
// =============================================================================

// FakeClock is a manually advanced clock. Its Now method is meant to be
// passed wherever a func() time.Time is accepted.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a clock stopped at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// Storage Helpers
// =============================================================================

// TempRoot returns an empty storage root removed at the end of the test.
func TempRoot(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "log")
}

// ReadLines returns the lines of path without line terminators.
func ReadLines(t *testing.T, path string) []string {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return lines
}

// FindFiles returns every regular file under root whose base name is name,
// relative to root, sorted.
func FindFiles(t *testing.T, root, name string) []string {
	t.Helper()

	var found []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() && info.Name() == name {
			rel, _ := filepath.Rel(root, path)
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(found)
	return found
}

// CountDataRows returns the number of lines in every file called name under
// root, excluding lines equal to header.
func CountDataRows(t *testing.T, root, name, header string) (rows, headers int) {
	t.Helper()

	for _, rel := range FindFiles(t, root, name) {
		for _, line := range ReadLines(t, filepath.Join(root, rel)) {
			if line == header {
				headers++
				continue
			}
			if strings.TrimSpace(line) != "" {
				rows++
			}
		}
	}
	return rows, headers
}

// =============================================================================
// Timing Helpers
// =============================================================================

// Eventually polls condition until it returns true or timeout expires.
func Eventually(timeout, interval time.Duration, condition func() bool) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("condition not met within %v", timeout)
}
