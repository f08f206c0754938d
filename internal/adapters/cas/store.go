// Package cas implements the build info store used by the scheduler's input-hash cache.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/lathe/internal/core/domain"
	"go.trai.ch/lathe/internal/core/ports"
	"go.trai.ch/zerr"
)

// FileName is the name of the build info file inside the store directory.
const FileName = "build_info.json"

var _ ports.BuildInfoStore = (*Store)(nil)

// Store implements ports.BuildInfoStore with one JSON document per pipeline root.
// The document maps task names to their last successful BuildInfo.
type Store struct {
	mu sync.Mutex
}

// NewStore creates a new BuildInfoStore.
func NewStore() *Store {
	return &Store{}
}

// Get retrieves the build info for a given task name.
func (s *Store) Get(root, taskName string) (*domain.BuildInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.load(root)
	if err != nil {
		return nil, err
	}

	info, ok := infos[taskName]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Put stores the build info. The file is replaced atomically.
func (s *Store) Put(root string, info domain.BuildInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos, err := s.load(root)
	if err != nil {
		return err
	}
	infos[info.TaskName] = info

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	filename := Path(root)
	if err := os.MkdirAll(filepath.Dir(filename), domain.DirPerm); err != nil {
		return zerr.Wrap(err, domain.ErrStoreCreateFailed.Error())
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), FileName+".*")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return zerr.Wrap(err, domain.ErrStoreWriteFailed.Error())
	}
	return nil
}

// Path returns the build info file for the pipeline root.
func Path(root string) string {
	return filepath.Join(root, domain.DefaultStorePath(), FileName)
}

func (s *Store) load(root string) (map[string]domain.BuildInfo, error) {
	//nolint:gosec // Path is constructed from the pipeline root
	data, err := os.ReadFile(Path(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]domain.BuildInfo), nil
		}
		return nil, zerr.Wrap(err, domain.ErrStoreReadFailed.Error())
	}

	infos := make(map[string]domain.BuildInfo)
	if err := json.Unmarshal(data, &infos); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "path", Path(root))
	}
	return infos, nil
}
