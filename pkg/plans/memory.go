package plans

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/flooanalytics/ingest/pkg/observability"
)

// MemoryCatalog is an in-memory plan catalog that can be replaced atomically
type MemoryCatalog struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewMemoryCatalog creates a catalog holding the given plans
func NewMemoryCatalog(plans ...Plan) (*MemoryCatalog, error) {
	c := &MemoryCatalog{}
	if err := c.Replace(plans); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup returns the plan with the given name
func (c *MemoryCatalog) Lookup(_ context.Context, name string) (Plan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.plans[name]
	if !ok {
		return Plan{}, unknownPlan(name)
	}
	return p, nil
}

// Replace swaps the catalog contents. On validation failure the catalog is unchanged.
func (c *MemoryCatalog) Replace(plans []Plan) error {
	next := make(map[string]Plan, len(plans))
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := next[p.Name]; dup {
			return fmt.Errorf("%w: duplicate plan %s", ErrInvalidPlan, p.Name)
		}
		next[p.Name] = p
	}

	c.mu.Lock()
	c.plans = next
	c.mu.Unlock()
	return nil
}

// Names returns the plan names currently in the catalog
func (c *MemoryCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	return names
}

// catalogFile is the YAML layout of a plan catalog file
type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// ParseYAML decodes a plan catalog document
func ParseYAML(data []byte) ([]Plan, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}
	return f.Plans, nil
}

// LoadFile creates a catalog from a YAML file
func LoadFile(path string) (*MemoryCatalog, error) {
	plans, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryCatalog(plans...)
}

func readFile(path string) ([]Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	return ParseYAML(data)
}

// WatchFile reloads the catalog whenever path is written or recreated.
// It blocks until ctx is cancelled. A file that fails to parse or validate is
// logged and the previous contents are kept.
func (c *MemoryCatalog) WatchFile(ctx context.Context, path string, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	log := logger.WithField("path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			plans, err := readFile(path)
			if err == nil {
				err = c.Replace(plans)
			}
			if err != nil {
				log.WithError(err).Warn("Plan catalog reload failed, keeping previous plans")
				continue
			}
			log.Infof("Plan catalog reloaded with %d plans", len(plans))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Plan catalog watcher error")
		}
	}
}
