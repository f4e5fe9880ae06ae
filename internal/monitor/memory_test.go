package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const statusFixture = `Name:	clearcrawl
Umask:	0022
State:	S (sleeping)
VmPeak:	 1843200 kB
VmSize:	 1640448 kB
VmRSS:	  524288 kB
VmData:	  409600 kB
Threads:	24
`

func writeStatus(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "status")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRSSMB(t *testing.T) {
	rss, err := readRSSMB(writeStatus(t, statusFixture))
	require.NoError(t, err)
	assert.InDelta(t, 512.0, rss, 1e-9)
}

func TestReadRSSMBMissingField(t *testing.T) {
	_, err := readRSSMB(writeStatus(t, "Name:\tclearcrawl\n"))
	assert.Error(t, err)
}

func TestWatchdogExitsOverLimit(t *testing.T) {
	w := NewMemoryWatchdog(256, time.Second, zap.NewNop())
	w.statusPath = writeStatus(t, statusFixture)

	var exitCode = -1
	w.exit = func(code int) { exitCode = code }

	w.check()
	assert.Equal(t, 1, exitCode, "512 MB rss over a 256 MB limit exits 1")
}

func TestWatchdogStaysQuietUnderLimit(t *testing.T) {
	w := NewMemoryWatchdog(1024, time.Second, zap.NewNop())
	w.statusPath = writeStatus(t, statusFixture)

	called := false
	w.exit = func(int) { called = true }

	w.check()
	assert.False(t, called)
}
