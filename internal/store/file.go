package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gihan9a/positionmodeler/internal/document"
	"gihan9a/positionmodeler/internal/utils"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

const documentExt = ".json"

// ChangeFunc is told about documents edited on disk by something other than
// this store.
type ChangeFunc func(collection, id string)

// FileStore keeps one JSON file per document under rootDir/<collection>/.
// Store order is file name order.
type FileStore struct {
	rootDir string
	mu      sync.Mutex
	watcher *fsnotify.Watcher

	// written holds the hash of what this store last left at each path, ""
	// once removed, so the watcher can tell its own writes apart
	writtenMu sync.Mutex
	written   map[string]string
}

// NewFileStore creates the root directory if needed
func NewFileStore(rootDir string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{rootDir: filepath.Clean(rootDir), written: make(map[string]string)}, nil
}

func (s *FileStore) collectionDir(collection string) string {
	return filepath.Join(s.rootDir, collection)
}

// getPathFromID converts a document id to a file path
func (s *FileStore) getPathFromID(collection, id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	return filepath.Join(s.collectionDir(collection), id+documentExt), nil
}

// getIDFromPath converts a file path back to its collection and id
func (s *FileStore) getIDFromPath(path string) (string, string, error) {
	relPath, err := filepath.Rel(s.rootDir, path)
	if err != nil {
		return "", "", err
	}
	relPath = filepath.ToSlash(relPath)

	collection, name, ok := strings.Cut(relPath, "/")
	if !ok || strings.Contains(name, "/") || !isDocumentFile(name) {
		return "", "", fmt.Errorf("%s is not a document file", path)
	}
	return collection, strings.TrimSuffix(name, documentExt), nil
}

func isDocumentFile(name string) bool {
	return strings.HasSuffix(name, documentExt) && !strings.HasPrefix(name, ".")
}

func (s *FileStore) readFile(path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, document.ErrNotFound
		}
		return nil, err
	}
	return document.Unmarshal(data)
}

// writeFile replaces path atomically through a hidden temp file
func (s *FileStore) writeFile(path string, doc document.Document) error {
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	s.remember(path, utils.CalculateHash(data))
	return nil
}

// removeFile deletes path, returning fs.ErrNotExist when it is already gone
func (s *FileStore) removeFile(path string) error {
	if err := os.Remove(path); err != nil {
		return err
	}
	s.remember(path, "")
	return nil
}

func (s *FileStore) remember(path, hash string) {
	s.writtenMu.Lock()
	s.written[path] = hash
	s.writtenMu.Unlock()
}

// ownChange reports whether path still holds exactly what this store wrote
// (or removed) there last
func (s *FileStore) ownChange(path string) bool {
	s.writtenMu.Lock()
	want, ok := s.written[path]
	s.writtenMu.Unlock()
	if !ok {
		return false
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return want == ""
	case err != nil:
		return false
	default:
		return want != "" && utils.CalculateHash(data) == want
	}
}

func (s *FileStore) listFiles(collection string) ([]string, error) {
	entries, err := os.ReadDir(s.collectionDir(collection))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isDocumentFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.collectionDir(collection), entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *FileStore) FindAll(ctx context.Context, collection string, match document.Predicate) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAll(ctx, collection, match)
}

func (s *FileStore) findAll(ctx context.Context, collection string, match document.Predicate) ([]document.Document, error) {
	paths, err := s.listFiles(collection)
	if err != nil {
		return nil, document.Fault("find", err)
	}
	out := []document.Document{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, document.Fault("find", err)
		}
		doc, err := s.readFile(path)
		if errors.Is(err, document.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, document.Fault("find", fmt.Errorf("%s: %w", path, err))
		}
		if match == nil || match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *FileStore) FindByID(ctx context.Context, collection, id string) (document.Document, error) {
	path, err := s.getPathFromID(collection, id)
	if err != nil {
		return nil, document.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readFile(path)
	return doc, document.Fault("find", err)
}

func (s *FileStore) InsertOne(ctx context.Context, collection string, doc document.Document) (document.Document, error) {
	stored, err := document.Normalize(doc)
	if err != nil {
		return nil, document.Fault("insert", err)
	}
	if stored.ID() == "" {
		stored.SetID(utils.NewID())
	}
	path, err := s.getPathFromID(collection, stored.ID())
	if err != nil {
		return nil, document.Fault("insert", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil, document.Fault("insert", fmt.Errorf("duplicate id %s", stored.ID()))
	}
	if err := s.writeFile(path, stored); err != nil {
		return nil, document.Fault("insert", err)
	}
	return stored, nil
}

func (s *FileStore) ReplaceOne(ctx context.Context, collection string, doc document.Document) error {
	path, err := s.getPathFromID(collection, doc.ID())
	if err != nil {
		return document.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document.ErrNotFound
		}
		return document.Fault("replace", err)
	}
	return document.Fault("replace", s.writeFile(path, doc))
}

func (s *FileStore) DeleteByID(ctx context.Context, collection, id string) error {
	path, err := s.getPathFromID(collection, id)
	if err != nil {
		return document.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.removeFile(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return document.ErrNotFound
		}
		return document.Fault("delete", err)
	}
	return nil
}

func (s *FileStore) DeleteMany(ctx context.Context, collection string, match document.Predicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.findAll(ctx, collection, match)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		path, err := s.getPathFromID(collection, doc.ID())
		if err != nil {
			continue
		}
		if err := s.removeFile(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, document.Fault("delete", err)
		}
		removed++
	}
	return removed, nil
}

// Watch reports document files written or removed under the store directory
// by other processes until Close is called. Writes made through this store are
// skipped. Collection directories created later are picked up.
func (s *FileStore) Watch(onChange ChangeFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	err = filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return fmt.Errorf("failed to set up file watchers: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go s.watchFiles(watcher, onChange)
	return nil
}

// watchFiles monitors file changes and hands them to onChange
func (s *FileStore) watchFiles(watcher *fsnotify.Watcher, onChange ChangeFunc) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						glog.Warningf("Error watching %s: %v", event.Name, err)
					}
					continue
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			collection, id, err := s.getIDFromPath(event.Name)
			if err != nil {
				continue
			}
			if s.ownChange(event.Name) {
				glog.V(2).Infof("Skipping own write to %s", event.Name)
				continue
			}

			glog.V(1).Infof("File changed: %s, collection: %s, id: %s", event.Name, collection, id)
			onChange(collection, id)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			glog.Warningf("Watcher error: %v", err)
		}
	}
}

// Close stops the watcher, if any
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}
