package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/ultra-white/keda/internal/domain"
)

// cartFileName is the single well-known key the guest cart lives
// under on the device.
const cartFileName = "cart.json"

// Local persists a guest cart as one serialized list on the device.
// The file is read and written wholesale, there are no partial
// updates.
type Local struct {
	mu   sync.Mutex
	path string
}

func NewLocal(dir string) *Local {
	return &Local{path: filepath.Join(dir, cartFileName)}
}

// Load reads the stored list. A missing file is an empty cart. A
// corrupt payload clears the file and proceeds with an empty cart
// rather than failing the session.
func (l *Local) Load(_ context.Context) ([]domain.LineItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local cart: %w", err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("local cart payload corrupt, discarding: %v", err)
		if rmErr := os.Remove(l.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Printf("failed to remove corrupt cart file: %v", rmErr)
		}
		return nil, nil
	}

	return items, nil
}

// Replace writes the full list atomically (temp file plus rename) so
// a crash mid-write cannot leave a half cart behind.
func (l *Local) Replace(_ context.Context, items []domain.LineItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal local cart: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create local cart dir: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write local cart: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace local cart: %w", err)
	}

	return nil
}

func (l *Local) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear local cart: %w", err)
	}
	return nil
}
