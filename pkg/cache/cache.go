// Package cache provides a weight-bounded LRU cache.
package cache

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrKeyExists = errors.New("key already exists in cache")

type entry[K comparable, V any] struct {
	key    K
	value  V
	weight int
}

// Cache holds entries up to a total weight budget. Inserting past the budget
// evicts the least recently used entries. Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	log *logrus.Entry

	mu      sync.Mutex
	order   *list.List
	entries map[K]*list.Element
	weight  int
	budget  int
}

func New[K comparable, V any](budget int) *Cache[K, V] {
	return &Cache[K, V]{
		log:     logrus.StandardLogger().WithField("type", "cache"),
		order:   list.New(),
		entries: make(map[K]*list.Element),
		budget:  budget,
	}
}

// Insert adds value under key. Existing keys are never overwritten.
func (c *Cache[K, V]) Insert(key K, value V, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return ErrKeyExists
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, weight: weight})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.removeElement(c.order.Back())
		c.log.WithFields(logrus.Fields{
			"key":    evicted.key,
			"weight": evicted.weight,
			"spare":  c.budget - c.weight,
		}).Trace("evicted cache entry")
	}

	return nil
}

// Retrieve returns the value under key and marks it as most recently used.
func (c *Cache[K, V]) Retrieve(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	return element.Value.(*entry[K, V]).value, true
}

// Remove drops key, reporting whether it was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(element)
	return true
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[K]*list.Element)
	c.weight = 0
}

func (c *Cache[K, V]) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

func (c *Cache[K, V]) Budget() int {
	return c.budget
}

func (c *Cache[K, V]) removeElement(element *list.Element) *entry[K, V] {
	removed := c.order.Remove(element).(*entry[K, V])
	delete(c.entries, removed.key)
	c.weight -= removed.weight
	return removed
}
