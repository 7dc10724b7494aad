package evaluation

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/xtal-lab/xtal/internal/instrument"
)

// Cache keeps compiled units by fingerprint.
type Cache struct {
	pass         *instrument.Pass
	units        *ristretto.Cache[string, *Unit]
	compileGroup singleflight.Group // Dedupe concurrent compilation
}

// NewCache creates a unit cache holding up to capacity units.
func NewCache(capacity int, pass *instrument.Pass) (*Cache, error) {
	if capacity <= 0 {
		capacity = 1
	}
	units, err := ristretto.NewCache(&ristretto.Config[string, *Unit]{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create unit cache: %w", err)
	}
	return &Cache{pass: pass, units: units}, nil
}

// Unit returns the compiled unit for (name, src), compiling it on a miss.
func (c *Cache) Unit(name, src string) *Unit {
	if name == "" {
		name = DefaultName
	}
	key := Fingerprint(name, src)

	if u, ok := c.units.Get(key); ok {
		return u
	}

	result, _, _ := c.compileGroup.Do(key, func() (interface{}, error) {
		// Double-check cache after acquiring singleflight lock
		if u, ok := c.units.Get(key); ok {
			return u, nil
		}
		u := Compile(name, src, c.pass)
		c.units.Set(key, u, 1)
		c.units.Wait()
		return u, nil
	})
	return result.(*Unit)
}

// Close stops the cache's background goroutines.
func (c *Cache) Close() {
	c.units.Close()
}
