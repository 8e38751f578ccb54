package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/utils"
)

func unlimitedTransferrer(root string, remote RemoteStore) *Transferrer {
	return NewTransferrer(root, remote, rate.NewLimiter(rate.Inf, 1), 4)
}

func noopDownloadSuccess(path, hash string) error { return nil }
func noopUploadSuccess(path string) error         { return nil }

func TestTransferrer_DownloadWritesFileAndHash(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	remote.put("docs/a.txt", []byte("hello"), 1234)
	tr := unlimitedTransferrer(root, remote)

	var gotHash string
	res, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "docs/a.txt", Mtime: 1234}},
		func(path, hash string) error {
			gotHash = hash
			return nil
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs/a.txt"}, res.Completed)
	assert.Empty(t, res.Skipped)
	assert.EqualValues(t, 5, res.Bytes)
	assert.Equal(t, utils.BytesHash([]byte("hello")), gotHash)

	data, err := os.ReadFile(filepath.Join(root, "docs/a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestTransferrer_DownloadStampsRemoteMtime(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	remote.put("a.txt", []byte("x"), 1700000000)
	tr := unlimitedTransferrer(root, remote)

	_, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "a.txt", Mtime: 1700000000}},
		noopDownloadSuccess, nil)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), info.ModTime().Unix())
}

func TestTransferrer_DownloadVanishedObjectIsSkippedAndStaleCopyRemoved(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "gone.txt", "stale")
	tr := unlimitedTransferrer(root, newFakeRemote())

	res, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "gone.txt", Mtime: 100}},
		noopDownloadSuccess, nil)
	require.NoError(t, err)

	assert.Empty(t, res.Completed)
	assert.Equal(t, []string{"gone.txt"}, res.Skipped)
	assert.False(t, utils.FileExists(filepath.Join(root, "gone.txt")))
}

func TestTransferrer_DownloadRetriesAfterPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits not enforced for root")
	}
	root := t.TempDir()
	writeTestFile(t, root, "locked.txt", "old")
	require.NoError(t, os.Chmod(filepath.Join(root, "locked.txt"), 0o444))

	remote := newFakeRemote()
	remote.put("locked.txt", []byte("new"), 100)
	tr := unlimitedTransferrer(root, remote)

	res, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "locked.txt", Mtime: 100}},
		noopDownloadSuccess, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"locked.txt"}, res.Completed)
	data, err := os.ReadFile(filepath.Join(root, "locked.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestTransferrer_DownloadHardErrorNamesPath(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	remote.put("bad.txt", []byte("x"), 100)
	remote.downloadErr["bad.txt"] = errors.New("connection reset")
	tr := unlimitedTransferrer(root, remote)

	_, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "bad.txt", Mtime: 100}},
		noopDownloadSuccess, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download bad.txt")
}

func TestTransferrer_UploadReadsAndSends(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "report.pdf", "pdf bytes")
	remote := newFakeRemote()
	tr := unlimitedTransferrer(root, remote)

	var persisted []string
	res, err := tr.UploadAll(context.Background(), []string{"report.pdf"},
		func(path string) error {
			persisted = append(persisted, path)
			return nil
		}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"report.pdf"}, res.Completed)
	assert.Equal(t, []string{"report.pdf"}, persisted)
	assert.Equal(t, "pdf bytes", string(remote.body("report.pdf")))
}

func TestTransferrer_UploadVanishedSourceIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "still-here.txt", "x")
	remote := newFakeRemote()
	tr := unlimitedTransferrer(root, remote)

	res, err := tr.UploadAll(context.Background(),
		[]string{"still-here.txt", "vanished.txt"},
		noopUploadSuccess, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"still-here.txt"}, res.Completed)
	assert.Equal(t, []string{"vanished.txt"}, res.Skipped)
	assert.Equal(t, []string{"still-here.txt"}, remote.paths())
}

func TestTransferrer_UploadFailureDoesNotAbortFinishedWork(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	paths := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		name := string(rune('a'+i)) + ".txt"
		writeTestFile(t, root, name, "content "+name)
		paths = append(paths, name)
	}
	remote.uploadErr["m.txt"] = errors.New("server error")
	tr := unlimitedTransferrer(root, remote)

	var persisted []string
	res, err := tr.UploadAll(context.Background(), paths,
		func(path string) error {
			persisted = append(persisted, path)
			return nil
		}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload m.txt")
	assert.NotContains(t, res.Completed, "m.txt")
	assert.NotContains(t, persisted, "m.txt")
	// Uploads that finished before the failure stay persisted.
	assert.Equal(t, len(res.Completed), len(persisted))
	for _, p := range persisted {
		assert.Contains(t, remote.paths(), p)
	}
}

func TestTransferrer_SharedLimiterPacesBothDirections(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		remote.put(name, []byte("x"), 100)
	}
	limiter := rate.NewLimiter(rate.Limit(50), 1)
	tr := NewTransferrer(root, remote, limiter, 8)

	files := make([]*boxsdk.RemoteFile, 0, 5)
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		files = append(files, &boxsdk.RemoteFile{Path: name, Mtime: 100})
	}

	start := time.Now()
	res, err := tr.DownloadAll(context.Background(), files, noopDownloadSuccess, nil)
	require.NoError(t, err)

	// 5 transfers at 50 req/s with burst 1 need at least 4 refill intervals.
	assert.Len(t, res.Completed, 5)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestTransferrer_CancelledContextStopsScheduling(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	remote.put("a.txt", []byte("x"), 100)
	tr := unlimitedTransferrer(root, remote)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.DownloadAll(ctx,
		[]*boxsdk.RemoteFile{{Path: "a.txt", Mtime: 100}},
		noopDownloadSuccess, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransferrer_OnSuccessErrorSurfaces(t *testing.T) {
	root := t.TempDir()
	remote := newFakeRemote()
	remote.put("a.txt", []byte("x"), 100)
	tr := unlimitedTransferrer(root, remote)

	_, err := tr.DownloadAll(context.Background(),
		[]*boxsdk.RemoteFile{{Path: "a.txt", Mtime: 100}},
		func(path, hash string) error { return errors.New("disk full") },
		nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist state")
}
