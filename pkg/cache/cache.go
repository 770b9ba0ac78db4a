// Package cache provides a write-back sector cache.
//
// The cache sits between the filesystem subsystems and the raw block device.
// It implements device.BlockDevice itself, so callers cannot tell whether
// they are talking to cached or raw storage. Dirty sectors are written back
// on eviction, on Flush, and on Close.
package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/psarda/sectorfs/pkg/device"
)

// DefaultSectors is the cache capacity used when none is configured.
const DefaultSectors = 64

// entry is one cached sector.
type entry struct {
	sector  device.SectorNum
	data    []byte
	dirty   bool
	lruNode *list.Element
}

// Cache is a write-back LRU sector cache over a block device.
//
// Thread Safety:
// All operations are protected by a single mutex. This coarse-grained locking
// is simple and correct; per-sector locking could improve concurrency for
// high-throughput scenarios.
type Cache struct {
	mu      sync.Mutex
	dev     device.BlockDevice
	entries map[device.SectorNum]*entry
	lruList *list.List
	maxSize int
	closed  bool

	// hit/miss counters, exposed for the shell's stat command
	hits   uint64
	misses uint64
}

// New creates a cache over dev holding at most maxSectors sectors.
// maxSectors <= 0 selects DefaultSectors.
func New(dev device.BlockDevice, maxSectors int) *Cache {
	if maxSectors <= 0 {
		maxSectors = DefaultSectors
	}
	return &Cache{
		dev:     dev,
		entries: make(map[device.SectorNum]*entry, maxSectors),
		lruList: list.New(),
		maxSize: maxSectors,
	}
}

// lookup returns the cached entry for sector n, loading it from the device
// on a miss. Evicts the least recently used entry when full.
// Must be called with the lock held.
func (c *Cache) lookup(n device.SectorNum) (*entry, error) {
	if e, ok := c.entries[n]; ok {
		c.hits++
		c.lruList.MoveToFront(e.lruNode)
		return e, nil
	}
	c.misses++

	if len(c.entries) >= c.maxSize {
		if err := c.evictOldest(); err != nil {
			return nil, err
		}
	}

	data := make([]byte, device.SectorSize)
	if err := c.dev.ReadSector(n, data); err != nil {
		return nil, err
	}

	e := &entry{sector: n, data: data}
	e.lruNode = c.lruList.PushFront(e)
	c.entries[n] = e
	return e, nil
}

// evictOldest writes back and drops the least recently used entry.
// Must be called with the lock held.
func (c *Cache) evictOldest() error {
	node := c.lruList.Back()
	if node == nil {
		return nil
	}
	e := node.Value.(*entry)
	if e.dirty {
		if err := c.dev.WriteSector(e.sector, e.data); err != nil {
			return fmt.Errorf("cache: write back sector %d: %w", e.sector, err)
		}
	}
	c.lruList.Remove(node)
	delete(c.entries, e.sector)
	return nil
}

// ReadSector reads sector n through the cache.
func (c *Cache) ReadSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("cache: closed")
	}
	e, err := c.lookup(n)
	if err != nil {
		return err
	}
	copy(buf, e.data)
	return nil
}

// WriteSector writes sector n through the cache. The sector is marked dirty
// and written back lazily.
func (c *Cache) WriteSector(n device.SectorNum, buf []byte) error {
	if err := device.CheckBuf(buf); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("cache: closed")
	}
	e, err := c.lookup(n)
	if err != nil {
		return err
	}
	copy(e.data, buf)
	e.dirty = true
	return nil
}

// SectorCount returns the underlying device's size in sectors.
func (c *Cache) SectorCount() device.SectorNum {
	return c.dev.SectorCount()
}

// Flush writes every dirty sector back to the device. Entries stay cached.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

func (c *Cache) flushLocked() error {
	for _, e := range c.entries {
		if !e.dirty {
			continue
		}
		if err := c.dev.WriteSector(e.sector, e.data); err != nil {
			return fmt.Errorf("cache: flush sector %d: %w", e.sector, err)
		}
		e.dirty = false
	}
	return nil
}

// Stats returns cache hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Close flushes all dirty sectors and tears the cache down. The underlying
// device is not closed; the caller owns it.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("cache: already closed")
	}
	if err := c.flushLocked(); err != nil {
		return err
	}
	c.closed = true
	c.entries = nil
	c.lruList = nil
	return nil
}
