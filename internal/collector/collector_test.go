package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicemon/internal/service"
)

func TestChecksumMD5(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	sum, err := Checksum(path, service.HashMD5)
	require.NoError(t, err)
	assert.Equal(t, "60b725f10c9c85c70d97880dfe8191b3", sum)
}

func TestChecksumSHA1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	sum, err := Checksum(path, service.HashSHA1)
	require.NoError(t, err)
	assert.Len(t, sum, 40)
}

func TestChecksumMissingFile(t *testing.T) {
	_, err := Checksum(filepath.Join(t.TempDir(), "gone"), service.HashMD5)
	assert.Error(t, err)
}

func TestBoundedBufferDiscardsOverflow(t *testing.T) {
	buf := &boundedBuffer{limit: 8}

	n, err := buf.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []byte("01234567"), buf.Bytes())

	_, err = buf.Write([]byte("more"))
	require.NoError(t, err)
	assert.Equal(t, []byte("01234567"), buf.Bytes())
}

func TestExecuteCapturesOutputAndExit(t *testing.T) {
	p, err := Execute([]string{"/bin/sh", "-c", "echo out; echo err >&2; exit 7"})
	require.NoError(t, err)

	p.WaitFor()
	assert.Equal(t, 7, p.ExitStatus())
	assert.Equal(t, "out\n", string(p.Output()))
	assert.Equal(t, "err\n", string(p.ErrorOutput()))
}

func TestExecuteRunningSentinel(t *testing.T) {
	p, err := Execute([]string{"/bin/sh", "-c", "sleep 2"})
	require.NoError(t, err)
	assert.Equal(t, -1, p.ExitStatus())
	assert.Greater(t, p.Pid(), 0)

	p.Kill()
	p.WaitFor()
}

func TestExecuteEmptyCommand(t *testing.T) {
	_, err := Execute(nil)
	assert.Error(t, err)
}

func TestBuildTreeFindsSelf(t *testing.T) {
	tree, err := BuildTree(nil)
	require.NoError(t, err)

	self := tree.Get(int32(os.Getpid()))
	require.NotNil(t, self)
	assert.Equal(t, int32(os.Getppid()), self.PPID)
	// CPU percent needs a previous snapshot to delta against.
	assert.Equal(t, int64(-1), self.CPUPercent)

	second, err := BuildTree(tree)
	require.NoError(t, err)
	self = second.Get(int32(os.Getpid()))
	require.NotNil(t, self)
	assert.GreaterOrEqual(t, self.CPUPercent, int64(0))
}

func TestIsProcessRunningViaPidfile(t *testing.T) {
	tree, err := BuildTree(nil)
	require.NoError(t, err)

	pidfile := filepath.Join(t.TempDir(), "app.pid")
	require.NoError(t, os.WriteFile(pidfile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644))

	s := &service.Service{Name: "self", Pidfile: pidfile}
	assert.Equal(t, int32(os.Getpid()), IsProcessRunning(s, tree))

	require.NoError(t, os.WriteFile(pidfile, []byte("0"), 0o644))
	assert.Equal(t, int32(0), IsProcessRunning(s, tree))

	s.Pidfile = filepath.Join(t.TempDir(), "missing.pid")
	assert.Equal(t, int32(0), IsProcessRunning(s, tree))
}

func TestUpdateProcessDataRotatesPrevious(t *testing.T) {
	tree, err := BuildTree(nil)
	require.NoError(t, err)
	pid := int32(os.Getpid())

	s := &service.Service{Name: "self"}
	require.True(t, UpdateProcessData(s, tree, pid))
	require.NotNil(t, s.Inf.Process)
	assert.Equal(t, pid, s.Inf.Process.PID)
	assert.Nil(t, s.Inf.Process.PrevPID)

	require.True(t, UpdateProcessData(s, tree, pid))
	require.NotNil(t, s.Inf.Process.PrevPID)
	assert.Equal(t, pid, *s.Inf.Process.PrevPID)

	assert.False(t, UpdateProcessData(s, tree, -42))
}

func TestFilesystemUsage(t *testing.T) {
	usage, err := FilesystemUsage("/")
	require.NoError(t, err)
	assert.Greater(t, usage.Blocks, int64(0))
	assert.GreaterOrEqual(t, usage.Blocks, usage.BlocksFreeTotal)
}
