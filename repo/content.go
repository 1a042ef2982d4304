package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	ContentFile = "content.json"
	BackupDir   = "backup"
)

// DefaultContent is the site copy used until an admin edits it
var DefaultContent = map[string]string{
	"welcomeTitle":       "Добро пожаловать",
	"siteTitle":          "Анкета по здоровью",
	"welcomeDescription": "Это бесплатная анкета по здоровью. Заполните форму, и мы свяжемся с вами для консультации.",
	"selectCategory":     "Выберите категорию анкеты",
}

// ContentStore holds the editable site copy. The file under dir is the source
// of truth when it can be read; the cached copy answers otherwise.
type ContentStore struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]string
}

// NewContentStore loads dir/content.json, creating it from DefaultContent when
// missing. An empty dir keeps content in memory only.
func NewContentStore(dir string) *ContentStore {
	c := &ContentStore{dir: dir, cache: maps.Clone(DefaultContent)}
	if dir == "" {
		return c
	}
	if err := c.ensureFile(); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("content directory unavailable, using in-memory copy")
		return c
	}
	if err := c.Reload(); err != nil {
		log.Warn().Err(err).Msg("failed to read content, using defaults")
	}
	return c
}

func (c *ContentStore) path() string {
	return filepath.Join(c.dir, ContentFile)
}

func (c *ContentStore) ensureFile() error {
	if err := os.MkdirAll(filepath.Join(c.dir, BackupDir), 0o755); err != nil {
		return err
	}
	if _, err := os.Stat(c.path()); os.IsNotExist(err) {
		return writeJSONFile(c.path(), DefaultContent)
	} else if err != nil {
		return err
	}
	return nil
}

// Get returns a copy of the current content
func (c *ContentStore) Get() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.cache)
}

// Reload re-reads the content file into the cache
func (c *ContentStore) Reload() error {
	if c.dir == "" {
		return nil
	}
	raw, err := os.ReadFile(c.path())
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	var content map[string]string
	if err := json.Unmarshal(raw, &content); err != nil {
		return fmt.Errorf("parse content: %w", err)
	}
	if content == nil {
		content = map[string]string{}
	}
	c.mu.Lock()
	c.cache = content
	c.mu.Unlock()
	return nil
}

// Update merges patch into the content and returns the result. The previous
// content is written to backup/content-<unix ms>.json before the file is
// replaced. Filesystem failures are logged; the cached copy is updated regardless.
func (c *ContentStore) Update(patch map[string]string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.cache
	next := maps.Clone(previous)
	maps.Copy(next, patch)
	c.cache = next

	if c.dir != "" {
		if err := c.persist(previous, next); err != nil {
			log.Error().Err(err).Msg("failed to persist content, kept in memory")
		}
	}
	return maps.Clone(next)
}

func (c *ContentStore) persist(previous, next map[string]string) error {
	if err := c.ensureFile(); err != nil {
		return err
	}
	backup := filepath.Join(c.dir, BackupDir, fmt.Sprintf("content-%d.json", nowFunc().UnixMilli()))
	if err := writeJSONFile(backup, previous); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	if err := writeJSONFile(c.path(), next); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}

// Watch reloads the cache whenever content.json changes on disk, until ctx is done
func (c *ContentStore) Watch(ctx context.Context) error {
	if c.dir == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create content watcher: %w", err)
	}
	defer watcher.Close()

	// the directory is watched because atomic replaces swap the file inode
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("watch %s: %w", c.dir, err)
	}
	log.Info().Str("path", c.path()).Msg("watching content file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != ContentFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if err := c.Reload(); err != nil {
				log.Warn().Err(err).Msg("content changed but could not be reloaded")
				continue
			}
			log.Debug().Str("op", event.Op.String()).Msg("content reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("content watcher error")
		}
	}
}

// writeJSONFile writes v as indented JSON via a temp file and rename
func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
