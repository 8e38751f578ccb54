package sync

import (
	"context"
	"sync"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/utils"
)

// fakeRemote is an in-memory RemoteStore with per-path fault injection.
type fakeRemote struct {
	mu      sync.Mutex
	objects map[string]*fakeObject

	listErr     error
	downloadErr map[string]error
	uploadErr   map[string]error
	deleteErr   map[string]error

	// afterList runs once right after the first List call, outside the lock,
	// to simulate local changes racing a cycle in progress.
	afterList func()
	listed    bool

	downloads []string
	uploads   []string
	deletes   []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		objects:     make(map[string]*fakeObject),
		downloadErr: make(map[string]error),
		uploadErr:   make(map[string]error),
		deleteErr:   make(map[string]error),
	}
}

type fakeObject struct {
	body  []byte
	mtime float64
	hash  string
}

func (f *fakeRemote) put(path string, body []byte, mtime float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = &fakeObject{body: body, mtime: mtime, hash: utils.BytesHash(body)}
}

func (f *fakeRemote) putNoHash(path string, body []byte, mtime float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = &fakeObject{body: body, mtime: mtime}
}

func (f *fakeRemote) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.objects))
	for p := range f.objects {
		paths = append(paths, p)
	}
	return paths
}

func (f *fakeRemote) body(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[path]; ok {
		return obj.body
	}
	return nil
}

func (f *fakeRemote) List(ctx context.Context) ([]*boxsdk.RemoteFile, error) {
	f.mu.Lock()
	if f.listErr != nil {
		err := f.listErr
		f.mu.Unlock()
		return nil, err
	}
	files := make([]*boxsdk.RemoteFile, 0, len(f.objects))
	for path, obj := range f.objects {
		files = append(files, &boxsdk.RemoteFile{Path: path, Mtime: obj.mtime, Hash: obj.hash})
	}
	hook := f.afterList
	first := !f.listed
	f.listed = true
	f.mu.Unlock()

	if hook != nil && first {
		hook()
	}
	return files, nil
}

func (f *fakeRemote) Download(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, path)
	if err := f.downloadErr[path]; err != nil {
		return nil, err
	}
	obj, ok := f.objects[path]
	if !ok {
		return nil, boxsdk.ErrFileNotFound
	}
	return obj.body, nil
}

func (f *fakeRemote) Upload(ctx context.Context, path string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, path)
	if err := f.uploadErr[path]; err != nil {
		return err
	}
	f.objects[path] = &fakeObject{body: body, mtime: 1000, hash: utils.BytesHash(body)}
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path)
	if err := f.deleteErr[path]; err != nil {
		return err
	}
	delete(f.objects, path)
	return nil
}

var _ RemoteStore = (*fakeRemote)(nil)
