package replicate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// fakeRemote is an in-memory RemoteClient. Folders and files live in
// flat maps keyed the way the engine addresses them, so tests can assert
// exactly what a run created. All calls happen on the run goroutine.
type fakeRemote struct {
	nextID  int
	folders map[string]string // parentID + "/" + name -> folder id
	files   map[string]int64  // parentID + "/" + name -> size

	lookups        []string // recorded LookupOrCreateFolder calls, "parent/name"
	createdFolders []string // names actually created
	uploadOrder    []string // file names in session-open order
	aborted        []string // file names whose sessions were aborted

	chunkFractions []float64       // fractional progress per chunk, final chunk completes
	failLookups    map[string]bool // folder name -> resolution error
	failUploads    map[string]bool // file name -> chunk error
	onChunk        func()          // hook invoked before every chunk, for cancellation tests
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		folders:     make(map[string]string),
		files:       make(map[string]int64),
		failLookups: make(map[string]bool),
		failUploads: make(map[string]bool),
	}
}

func (f *fakeRemote) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeRemote) LookupOrCreateFolder(_ context.Context, parentID, name string) (string, error) {
	f.lookups = append(f.lookups, parentID+"/"+name)

	if f.failLookups[name] {
		return "", errors.New("fake: folder resolution failed")
	}

	key := parentID + "/" + name
	if id, ok := f.folders[key]; ok {
		return id, nil
	}

	id := f.newID("folder")
	f.folders[key] = id
	f.createdFolders = append(f.createdFolders, name)

	return id, nil
}

func (f *fakeRemote) CreateFileResumable(_ context.Context, spec UploadSpec, _ io.Reader) (UploadSession, error) {
	key := spec.ParentID + "/" + spec.Name
	if _, exists := f.files[key]; exists {
		return nil, ErrConflict
	}

	f.uploadOrder = append(f.uploadOrder, spec.Name)

	return &fakeSession{remote: f, key: key, name: spec.Name, size: spec.Size}, nil
}

func (f *fakeRemote) ListChildFolders(_ context.Context, parentID string) ([]FolderRef, error) {
	var refs []FolderRef

	for key, id := range f.folders {
		parent, name, _ := strings.Cut(key, "/")
		if parent == parentID {
			refs = append(refs, FolderRef{ID: id, Name: name})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })

	return refs, nil
}

func (f *fakeRemote) SummarizeFolderContents(_ context.Context, folderID string) (FolderSummary, error) {
	var summary FolderSummary

	for key := range f.folders {
		if strings.HasPrefix(key, folderID+"/") {
			summary.FolderCount++
		}
	}

	for key, size := range f.files {
		if strings.HasPrefix(key, folderID+"/") {
			summary.FileCount++
			summary.DirectFileBytes += size
		}
	}

	return summary, nil
}

func (f *fakeRemote) CreateFolder(_ context.Context, parentID, name string) (FolderRef, error) {
	id := f.newID("folder")
	f.folders[parentID+"/"+name] = id
	f.createdFolders = append(f.createdFolders, name)

	return FolderRef{ID: id, Name: name}, nil
}

func (f *fakeRemote) TrashFolder(_ context.Context, folderID string) error {
	for key, id := range f.folders {
		if id == folderID {
			delete(f.folders, key)
			return nil
		}
	}

	return errors.New("fake: folder not found")
}

// fakeSession walks through the remote's configured chunk fractions and
// registers the file on completion.
type fakeSession struct {
	remote *fakeRemote
	key    string
	name   string
	size   int64
	step   int
}

func (s *fakeSession) AdvanceChunk(context.Context) (float64, *FileInfo, error) {
	if s.remote.onChunk != nil {
		s.remote.onChunk()
	}

	if s.remote.failUploads[s.name] {
		return 0, nil, errors.New("fake: chunk upload failed")
	}

	if s.step < len(s.remote.chunkFractions) {
		fraction := s.remote.chunkFractions[s.step]
		s.step++

		return fraction, nil, nil
	}

	s.remote.files[s.key] = s.size

	return 1.0, &FileInfo{ID: s.remote.newID("file"), Name: s.name, Size: s.size}, nil
}

func (s *fakeSession) Abort(context.Context) error {
	s.remote.aborted = append(s.remote.aborted, s.name)
	return nil
}
