package planstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/temotskipa/autoredistrict/pkg/plan"
)

// FileStore keeps one JSON file per plan under a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a file-backed store rooted at baseDir.
// If baseDir is empty, defaults to ~/.local/share/autoredistrict/plans.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = filepath.Join(home, ".local", "share", "autoredistrict", "plans")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plan dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// planPath maps an ID to its file. IDs come in over the API, so anything
// that could escape baseDir is rejected.
func (s *FileStore) planPath(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid plan id %q", id)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}

func (s *FileStore) Save(ctx context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.planPath(p.ID)
	if err != nil {
		return err
	}
	return p.WriteFile(path)
}

func (s *FileStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.planPath(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return plan.ReadFile(path)
}

func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read plan dir: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		p, err := plan.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, infoOf(p))
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.planPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("remove plan file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the base directory for plan files.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
