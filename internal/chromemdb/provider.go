package chromemdb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/philippgille/chromem-go"
	"golang.org/x/sync/singleflight"

	"docqa/internal/config"
	"docqa/internal/models"
)

// ErrStoreNotFound is returned when no store exists for a (user, file) pair.
var ErrStoreNotFound = fmt.Errorf("vector store %w", models.ErrNotFound)

// Provider locates the persistent store of each (user, file) pair under a
// root directory and keeps recently used stores open.
type Provider struct {
	root          string
	compress      bool
	encryptionKey string
	embed         chromem.EmbeddingFunc

	cache *expirable.LRU[string, *VectorDBManager]
	group singleflight.Group
}

func NewProvider(cfg *config.RAGConfig, embed chromem.EmbeddingFunc) *Provider {
	return &Provider{
		root:          cfg.StoreRoot,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		embed:         embed,
		cache:         expirable.NewLRU[string, *VectorDBManager](cfg.StoreCacheSize, nil, cfg.StoreCacheTTL.Duration()),
	}
}

// StorePath is <root>/<user_id>/<file_id>.
func (p *Provider) StorePath(userID, fileID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(userID, 10), strconv.FormatInt(fileID, 10))
}

// Open returns the existing store for the pair, or ErrStoreNotFound.
func (p *Provider) Open(userID, fileID int64) (*VectorDBManager, error) {
	path := p.StorePath(userID, fileID)
	if m, ok := p.cache.Get(path); ok {
		return m, nil
	}

	v, err, _ := p.group.Do(path, func() (interface{}, error) {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
			return nil, ErrStoreNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to stat store %s: %w", path, err)
		}
		m, err := newVectorDBManager(path, p.compress, p.encryptionKey, p.embed)
		if err != nil {
			return nil, err
		}
		p.cache.Add(path, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*VectorDBManager), nil
}

// Create makes a fresh, empty store for the pair, replacing any existing one.
func (p *Provider) Create(userID, fileID int64) (*VectorDBManager, error) {
	path := p.StorePath(userID, fileID)
	p.cache.Remove(path)
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("failed to clear store %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store %s: %w", path, err)
	}
	m, err := newVectorDBManager(path, p.compress, p.encryptionKey, p.embed)
	if err != nil {
		return nil, err
	}
	p.cache.Add(path, m)
	return m, nil
}

// Invalidate drops a cached store so the next Open reloads it from disk.
func (p *Provider) Invalidate(userID, fileID int64) {
	p.cache.Remove(p.StorePath(userID, fileID))
}
