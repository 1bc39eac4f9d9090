package vfs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deploymenttheory/go-vfs/internal/vfs/crypto"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpenEmptyContainer(t *testing.T) {
	fs, mem := newTestFS(t)

	raw, err := afero.ReadFile(mem, testContainer)
	require.NoError(t, err)
	assert.Len(t, raw, FirstClusterOffset+DefaultClusterSize*(ClusterMapThreshold+1))

	reopen(t, fs)
	assert.True(t, fs.IsOpen())
	assert.Equal(t, `\`, fs.FullPath())
	assert.Equal(t, "TEST", fs.GetLabel())
	assert.Empty(t, fs.GetDirectories())
	assert.Empty(t, fs.GetFiles())

	info, err := fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, ClusterMapThreshold+1, info.SlotsUsed)
	assert.Equal(t, 1, info.Nodes)
	assert.Equal(t, 1, info.IndexBlocks)
}

func TestCreateRefusesExistingFile(t *testing.T) {
	fs, mem := newTestFS(t)
	require.NoError(t, fs.Close())

	other := New(testContainer, WithFs(mem))
	assert.ErrorIs(t, other.Create(false, ""), ErrAlreadyExists)
	require.NoError(t, other.Create(true, "fresh"))
	assert.Equal(t, "FRESH", other.GetLabel())
	require.NoError(t, other.Close())
}

func TestOpenMissingContainer(t *testing.T) {
	fs := New("/nowhere/missing", WithFs(afero.NewMemMapFs()))
	assert.Equal(t, "/nowhere/missing.vfs", fs.Path())
	assert.ErrorIs(t, fs.Open(), ErrNotFound)
	assert.False(t, fs.IsOpen())

	_, err := fs.Touch("x")
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, fs.Flush(), ErrNotOpen)
	assert.NoError(t, fs.Close())
}

func TestLabel(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Label("backup"))
	reopen(t, fs)
	assert.Equal(t, "BACKUP", fs.GetLabel())

	require.NoError(t, fs.Label(""))
	assert.Equal(t, "test", fs.GetLabel())
	assert.ErrorIs(t, fs.Label("0123456789012345678901234567890123"), ErrInvalidName)

	// 32 bytes lower case, 48 once upper-cased
	wide := strings.Repeat("\u0250", 16)
	assert.ErrorIs(t, fs.Label(wide), ErrInvalidName)
	assert.Equal(t, "test", fs.GetLabel())
	assert.ErrorIs(t, fs.Format(wide), ErrInvalidName)

	require.NoError(t, fs.Label(strings.Repeat("\u0131", 16)))
	assert.Equal(t, strings.Repeat("I", 16), fs.GetLabel())
}

func TestFormatStoresLabelUpperCase(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Format("mixed Case"))
	reopen(t, fs)
	assert.Equal(t, "MIXED CASE", fs.GetLabel())
	assert.Equal(t, "MIXED CASE", fs.Header().Name())
}

func TestRoundTripSizes(t *testing.T) {
	usable := DefaultClusterSize - dataClusterOverhead
	for _, n := range []int{0, 1, usable, 3*usable + 17} {
		fs, _ := newTestFS(t)
		data := pattern(n)
		node := writeFile(t, fs, "data.bin", data)
		assert.Equal(t, int64(n), node.Size())
		assert.Equal(t, (n+usable-1)/usable, node.ClusterCount())

		require.NoError(t, fs.Flush())
		reopen(t, fs)

		got := readFile(t, fs, "data.bin")
		assert.True(t, bytes.Equal(data, got), "size %d: content mismatch", n)
	}
}

func TestPathResolution(t *testing.T) {
	fs, _ := newTestFS(t)

	_, err := fs.CreateFolder("A")
	require.NoError(t, err)
	_, err = fs.ChangeToFolder("A")
	require.NoError(t, err)
	_, err = fs.CreateFolder("B")
	require.NoError(t, err)
	_, err = fs.Touch(`B\c.txt`)
	require.NoError(t, err)
	require.NoError(t, fs.ChangeToRoot())

	reopen(t, fs)

	byPath, err := fs.GetFile(`\A\B\c.txt`)
	require.NoError(t, err)

	_, err = fs.ChangeToFolder("A")
	require.NoError(t, err)
	b, err := fs.ChangeToFolder("B")
	require.NoError(t, err)
	assert.Same(t, byPath, b.FindFile("c.txt"))
	assert.Equal(t, `\A\B`, fs.FullPath())

	viaDots, err := fs.GetFile(`..\B\.\C.TXT`)
	require.NoError(t, err)
	assert.Same(t, byPath, viaDots)

	require.NoError(t, fs.ChangeOneUp())
	require.NoError(t, fs.ChangeOneUp())
	require.NoError(t, fs.ChangeOneUp())
	assert.Equal(t, `\`, fs.FullPath())

	_, err = fs.GetFile(`\A\missing.txt`)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.GetFile(`\A\B`)
	assert.ErrorIs(t, err, ErrIsDirectory)
	_, err = fs.ChangeToFolder(`\A\B\c.txt`)
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestNodeIdentifiersFollowPaths(t *testing.T) {
	fs, _ := newTestFS(t)
	dir, err := fs.CreateFolder("Docs")
	require.NoError(t, err)
	file, err := fs.Touch(`Docs\Read Me.TXT`)
	require.NoError(t, err)

	assert.Equal(t, Identify(`\docs`), dir.ID())
	assert.Equal(t, Identify(`\docs\read me.txt`), file.ID())
	assert.Equal(t, dir.ID(), file.Parent())
	assert.Equal(t, RootID, fs.Root().ID())
}

func TestCreateFolderConflicts(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.CreateFolder("A")
	require.NoError(t, err)

	_, err = fs.CreateFolder("a")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = fs.Touch("A")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	_, err = fs.CreateFolder(`missing\x`)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.CreateFolder("bad/")
	assert.NoError(t, err) // trailing separator is ignored
	_, err = fs.CreateFolder("")
	assert.ErrorIs(t, err, ErrInvalidName)

	// a trailing NUL would vanish from the stored name
	_, err = fs.Touch("a\x00")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = fs.GetFile("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveDirectory(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.CreateFolder("A")
	require.NoError(t, err)
	_, err = fs.Touch(`A\f`)
	require.NoError(t, err)

	assert.ErrorIs(t, fs.RemoveDirectory("A"), ErrNotEmpty)
	assert.ErrorIs(t, fs.RemoveDirectory("missing"), ErrNotFound)
	assert.True(t, IsInvalidOperation(fs.RemoveDirectory(`\`)))

	require.NoError(t, fs.DeleteFile(`A\f`))
	_, err = fs.ChangeToFolder("A")
	require.NoError(t, err)
	require.NoError(t, fs.RemoveDirectory(`\A`))
	assert.Equal(t, `\`, fs.FullPath())

	reopen(t, fs)
	assert.Empty(t, fs.GetDirectories())
}

func TestDeleteFileFreesSpace(t *testing.T) {
	fs, _ := newTestFS(t)
	before, err := fs.Stat()
	require.NoError(t, err)

	writeFile(t, fs, "x", pattern(3*DefaultClusterSize))
	mid, err := fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, before.SlotsUsed+4, mid.SlotsUsed)

	require.NoError(t, fs.DeleteFile("x"))
	_, err = fs.GetFile("x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fs.DeleteFile("x"), ErrNotFound)

	after, err := fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, before.SlotsUsed, after.SlotsUsed)

	// The freed node slot is reused
	_, err = fs.Touch("y")
	require.NoError(t, err)
	assert.Equal(t, "y", fs.index.blocks[0].nodes[1].Name())

	reopen(t, fs)
	report, err := fs.Check()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
}

func TestGrowShrinkChain(t *testing.T) {
	fs, _ := newTestFS(t)
	usable := int64(fs.Header().UsableClusterSize())

	node, err := fs.Touch("chain")
	require.NoError(t, err)
	s, err := fs.OpenStream(node)
	require.NoError(t, err)

	free := fs.maps.SlotsFree()
	require.NoError(t, s.SetLength(5*usable))
	assert.Equal(t, 5, node.ClusterCount())
	assert.Equal(t, free-5, fs.maps.SlotsFree())

	chain := collectChain(t, fs, node)
	require.Len(t, chain, 5)
	for i := 1; i < len(chain); i++ {
		assert.Equal(t, chain[i].id, chain[i-1].next)
		assert.Equal(t, chain[i-1].id, chain[i].previous)
	}
	assert.Equal(t, NoCluster, chain[0].previous)

	require.NoError(t, s.SetLength(2*usable-1))
	assert.Equal(t, 2, node.ClusterCount())
	assert.Equal(t, free-2, fs.maps.SlotsFree())
	last, err := fs.dataCluster(node.LastCluster())
	require.NoError(t, err)
	assert.Equal(t, NoCluster, last.next)
	assert.Equal(t, chain[1].id, node.LastCluster())

	// Released clusters are handed out again
	for _, dc := range chain[2:] {
		used, err := fs.maps.Used(dc.id)
		require.NoError(t, err)
		assert.False(t, used)
	}
	assert.Equal(t, chain[2].id, fs.maps.GetFreeSlot())

	require.NoError(t, s.SetLength(0))
	assert.Equal(t, NoCluster, node.FirstCluster())
	assert.Equal(t, NoCluster, node.LastCluster())
	assert.Equal(t, free, fs.maps.SlotsFree())
	require.NoError(t, s.Close())
}

func collectChain(t *testing.T, fs *FS, node *Node) []*dataCluster {
	t.Helper()
	var out []*dataCluster
	for id := node.FirstCluster(); id != NoCluster; {
		dc, err := fs.dataCluster(id)
		require.NoError(t, err)
		out = append(out, dc)
		id = dc.next
	}
	return out
}

func TestStreamSeekAndOverwrite(t *testing.T) {
	fs, _ := newTestFS(t)
	usable := fs.Header().UsableClusterSize()
	data := pattern(4 * usable)
	writeFile(t, fs, "f", data)

	s, err := fs.GetFileStream("f")
	require.NoError(t, err)
	defer s.Close()

	// Overwrite across a cluster boundary, then read it back walking backwards
	patch := bytes.Repeat([]byte{0xEE}, 100)
	pos, err := s.Seek(int64(2*usable-50), io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2*usable-50), pos)
	_, err = s.Write(patch)
	require.NoError(t, err)
	copy(data[2*usable-50:], patch)

	_, err = s.Seek(10, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, len(data))
	_, err = io.ReadFull(s, buf[10:])
	require.NoError(t, err)
	assert.Equal(t, data[10:], buf[10:])

	_, err = s.Read(buf)
	assert.Equal(t, io.EOF, err)

	end, err := s.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)-1), end)
	b, err := s.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, data[len(data)-1], b)

	_, err = s.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, int64(len(data)), s.Length())

	require.NoError(t, s.Close())
	_, err = s.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStreamGapReadsZero(t *testing.T) {
	fs, _ := newTestFS(t)
	usable := fs.Header().UsableClusterSize()
	node := writeFile(t, fs, "sparse", pattern(usable+10))

	s, err := fs.OpenStream(node)
	require.NoError(t, err)
	require.NoError(t, s.SetLength(5))

	// Seeking past the end does not allocate
	_, err = s.Seek(int64(2*usable), io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, 1, node.ClusterCount())

	require.NoError(t, s.WriteByte('x'))
	assert.Equal(t, int64(2*usable+1), s.Length())
	assert.Equal(t, 3, node.ClusterCount())
	require.NoError(t, s.Close())

	got := readFile(t, fs, "sparse")
	assert.Equal(t, pattern(5), got[:5])
	assert.Equal(t, make([]byte, 2*usable-5), got[5:2*usable])
	assert.Equal(t, byte('x'), got[2*usable])
}

func TestStreamRejectsLengthBeyondClusterRange(t *testing.T) {
	fs, _ := newTestFS(t)
	usable := int64(fs.Header().UsableClusterSize())
	node := writeFile(t, fs, "far", pattern(10))

	s, err := fs.OpenStream(node)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Seek((1<<32)*usable, io.SeekStart)
	require.NoError(t, err)
	assert.ErrorIs(t, s.WriteByte(1), ErrNoSpace)
	assert.ErrorIs(t, s.SetLength(math.MaxInt64), ErrNoSpace)
	assert.ErrorIs(t, s.SetLength(int64(fs.maps.SlotCount()+1)*usable), ErrNoSpace)

	assert.Equal(t, int64(10), s.Length())
	assert.Equal(t, 1, node.ClusterCount())

	require.NoError(t, fs.Flush())
	report, err := fs.Check()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
	assert.Equal(t, pattern(10), readFile(t, fs, "far"))
}

func TestStreamsShareShrinkingChain(t *testing.T) {
	fs, _ := newTestFS(t)
	usable := fs.Header().UsableClusterSize()
	node := writeFile(t, fs, "a", bytes.Repeat([]byte{'A'}, 3*usable))

	shrinker, err := fs.OpenStream(node)
	require.NoError(t, err)
	defer shrinker.Close()
	reader, err := fs.OpenStream(node)
	require.NoError(t, err)
	defer reader.Close()

	// Park the reader on the third cluster
	_, err = reader.Seek(int64(2*usable), io.SeekStart)
	require.NoError(t, err)
	b, err := reader.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('A'), b)

	require.NoError(t, shrinker.SetLength(int64(usable)))
	writeFile(t, fs, "b", bytes.Repeat([]byte{'B'}, 2*usable))
	require.NoError(t, shrinker.SetLength(int64(3*usable)))

	_, err = reader.Seek(int64(2*usable), io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(reader, buf)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 4), buf)

	_, err = reader.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(reader, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("AAAA"), buf)

	assert.Equal(t, bytes.Repeat([]byte{'B'}, 2*usable), readFile(t, fs, "b"))
}

func TestStreamReadsAfterOtherStreamAllocates(t *testing.T) {
	fs, _ := newTestFS(t)
	node, err := fs.Touch("empty")
	require.NoError(t, err)

	reader, err := fs.OpenStream(node)
	require.NoError(t, err)
	defer reader.Close()
	writer, err := fs.OpenStream(node)
	require.NoError(t, err)
	defer writer.Close()

	_, err = writer.Write([]byte("late"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(reader, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("late"), buf)
}

func TestWriteFailsCleanlyWhenFull(t *testing.T) {
	fs, _ := newTestFS(t, WithClusterSize(MinClusterSize))
	usable := fs.Header().UsableClusterSize()
	before, err := fs.Stat()
	require.NoError(t, err)

	node, err := fs.Touch("f")
	require.NoError(t, err)
	s, err := fs.OpenStream(node)
	require.NoError(t, err)

	_, err = s.Write(make([]byte, (fs.maps.SlotsFree()+1)*usable))
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, int64(0), node.Size())
	assert.Equal(t, 0, node.ClusterCount())
	require.NoError(t, s.Close())

	after, err := fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, before.SlotsUsed, after.SlotsUsed)

	// The container is still usable up to its capacity
	writeFile(t, fs, "g", pattern(10*usable))
	require.NoError(t, fs.DeleteFile("g"))
	require.NoError(t, fs.DeleteFile("f"))
	after, err = fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, before.SlotsUsed, after.SlotsUsed)
}

func TestTruncateReleasesClustersBeyondSize(t *testing.T) {
	fs, _ := newTestFS(t)
	node, err := fs.Touch("leftover")
	require.NoError(t, err)
	used := fs.maps.SlotsUsed()

	// Clusters attached without the size following, as a failed growth would leave them
	require.NoError(t, fs.enhanceClusters(node, 3))
	assert.Equal(t, int64(0), node.Size())
	assert.Equal(t, used+3, fs.maps.SlotsUsed())

	s, err := fs.OpenStream(node)
	require.NoError(t, err)
	require.NoError(t, s.SetLength(0))
	require.NoError(t, s.Close())

	assert.Equal(t, 0, node.ClusterCount())
	assert.Equal(t, NoCluster, node.FirstCluster())
	assert.Equal(t, used, fs.maps.SlotsUsed())

	require.NoError(t, fs.enhanceClusters(node, 2))
	require.NoError(t, fs.DeleteFile("leftover"))
	assert.Equal(t, used, fs.maps.SlotsUsed())
}

func TestCorruptDataClusterDetected(t *testing.T) {
	fs, mem := newTestFS(t)
	node := writeFile(t, fs, "f", pattern(1000))
	first := node.FirstCluster()
	require.NoError(t, fs.Close())

	flipByte(t, mem, FirstClusterOffset+int64(first)*DefaultClusterSize+500)

	require.NoError(t, fs.Open())
	s, err := fs.GetFileStream("f")
	require.NoError(t, err)
	_, err = io.ReadAll(s)
	assert.True(t, IsCorrupt(err), "expected corruption, got %v", err)

	report, err := fs.Check()
	require.NoError(t, err)
	assert.False(t, report.OK())
}

func TestCorruptHeaderDetected(t *testing.T) {
	fs, mem := newTestFS(t)
	require.NoError(t, fs.Close())

	flipByte(t, mem, 14) // inside the volume name
	err := fs.Open()
	assert.True(t, IsCorrupt(err), "expected corruption, got %v", err)
	assert.False(t, fs.IsOpen())
}

func TestCorruptIndexDetected(t *testing.T) {
	fs, mem := newTestFS(t)
	require.NoError(t, fs.Close())

	flipByte(t, mem, FirstClusterOffset+ClusterMapThreshold*DefaultClusterSize+100)
	assert.True(t, IsCorrupt(fs.Open()))
}

func TestPassphraseMismatch(t *testing.T) {
	c, err := crypto.PassphraseCipher("hunter2")
	require.NoError(t, err)
	fs, mem := newTestFS(t, WithCipher(c))
	writeFile(t, fs, "secret", []byte("payload"))
	require.NoError(t, fs.Close())

	plain := New(testContainer, WithFs(mem))
	err = plain.Open()
	assert.ErrorIs(t, err, ErrSignatureMismatch)

	require.NoError(t, fs.Open())
	assert.Equal(t, []byte("payload"), readFile(t, fs, "secret"))
}

func TestValidatorRejects(t *testing.T) {
	var seen []Change
	fs, _ := newTestFS(t, WithValidator(func(c Change) error {
		seen = append(seen, c)
		if c.Name == "forbidden" {
			return errors.New("name not allowed")
		}
		return nil
	}))

	_, err := fs.Touch("forbidden")
	assert.ErrorIs(t, err, ErrRejected)
	_, err = fs.GetFile("forbidden")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fs.CreateFolder("ok")
	require.NoError(t, err)
	require.NoError(t, fs.RemoveDirectory("ok"))

	require.Len(t, seen, 3)
	assert.Equal(t, ChangeTouch, seen[0].Op)
	assert.Equal(t, ChangeCreateFolder, seen[1].Op)
	assert.Equal(t, ChangeRemoveFolder, seen[2].Op)
	assert.Same(t, fs.Root(), seen[2].Directory)
}

func TestFailedChangeReloads(t *testing.T) {
	fail := false
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/containers", 0o755))
	fs := New(testContainer, WithFs(faultyFs{Fs: mem, fail: &fail}))
	require.NoError(t, fs.Create(false, ""))
	defer fs.Close()

	_, err := fs.CreateFolder("kept")
	require.NoError(t, err)

	fail = true
	_, err = fs.CreateFolder("lost")
	require.Error(t, err)
	assert.True(t, IsIO(err))
	assert.ErrorIs(t, err, errInjected)

	// State was rebuilt from disk
	fail = false
	require.True(t, fs.IsOpen())
	_, err = fs.ChangeToFolder("lost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = fs.ChangeToFolder("kept")
	assert.NoError(t, err)
}

func TestStreamInvalidatedByReload(t *testing.T) {
	fs, _ := newTestFS(t)
	node := writeFile(t, fs, "f", []byte("abc"))
	s, err := fs.OpenStream(node)
	require.NoError(t, err)

	require.NoError(t, fs.Reload())
	_, err = s.Read(make([]byte, 3))
	assert.ErrorIs(t, err, ErrStaleStream)
	assert.NoError(t, s.Close())

	_, err = fs.OpenStream(node)
	assert.ErrorIs(t, err, ErrStaleStream)
}

func TestSetFlags(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.CreateFolder("dir")
	require.NoError(t, err)
	_, err = fs.Touch("file")
	require.NoError(t, err)

	require.NoError(t, fs.SetFlags("file", FlagHidden|FlagReadOnly, FlagArchive))
	require.NoError(t, fs.SetFlags("dir", FlagSystem, 0))
	assert.True(t, IsInvalidOperation(fs.SetFlags("file", FlagDirectory, 0)))
	assert.ErrorIs(t, fs.SetFlags("nope", FlagHidden, 0), ErrNotFound)

	reopen(t, fs)
	files := fs.GetFiles()
	require.Len(t, files, 1)
	assert.Equal(t, "-RH-----", files[0].Attributes)
	dirs := fs.GetDirectories()
	require.Len(t, dirs, 1)
	assert.Equal(t, "------SD", dirs[0].Attributes)
}

func TestIndexGrowthPersists(t *testing.T) {
	fs, _ := newTestFS(t)
	per := NodesPerBlock(DefaultClusterSize)
	for i := 0; i < per+5; i++ {
		_, err := fs.Touch(fmt.Sprintf("f%03d", i))
		require.NoError(t, err)
	}
	reopen(t, fs)

	info, err := fs.Stat()
	require.NoError(t, err)
	assert.Equal(t, 2, info.IndexBlocks)
	assert.Len(t, fs.GetFiles(), per+5)

	report, err := fs.Check()
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Problems)
	assert.Equal(t, per+5, report.Files)
}

func TestSmallCacheEviction(t *testing.T) {
	fs, _ := newTestFS(t, WithCacheSize(2))
	data := pattern(10 * fs.Header().UsableClusterSize())
	writeFile(t, fs, "big", data)
	reopen(t, fs)
	assert.Equal(t, data, readFile(t, fs, "big"))
}

func TestSmallClusterSize(t *testing.T) {
	fs, _ := newTestFS(t, WithClusterSize(MinClusterSize))
	data := pattern(5000)
	writeFile(t, fs, "f", data)
	reopen(t, fs)
	assert.Equal(t, MinClusterSize, fs.Header().ClusterSize)
	assert.Equal(t, data, readFile(t, fs, "f"))
}

func TestWithContainerOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk")
	fs := New(path)
	require.NoError(t, fs.Create(false, "disk"))
	writeFile(t, fs, "hello.txt", []byte("hello"))
	require.NoError(t, fs.Close())

	err := WithContainer(path, func(c *FS) error {
		got := readFile(t, c, `\hello.txt`)
		assert.Equal(t, []byte("hello"), got)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.ErrorIs(t, WithContainer(path, func(*FS) error { return boom }), boom)
}
