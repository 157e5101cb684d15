package vapor

import (
	"fmt"
	"sync"
)

// Catalog is the name-indexed, load-once view over a compound Source. After a
// successful Load the index is immutable and safe for any number of
// concurrent readers.
type Catalog struct {
	src Source

	once    sync.Once
	loadErr error
	names   []string
	byName  map[string]Compound
}

// NewCatalog returns an unloaded catalog over src. Names and Lookup are
// meaningful only after Load has returned nil.
func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src}
}

// Load reads the source and builds the index. The source is read at most once
// per catalog even under concurrent callers, and no caller ever observes a
// partially built index. The outcome is cached, including a failure: a
// catalog whose load failed keeps returning the same error without touching
// the source again.
func (c *Catalog) Load() error {
	c.once.Do(func() {
		recs, err := c.src.Records()
		if err != nil {
			c.loadErr = err
			return
		}
		byName := make(map[string]Compound, len(recs))
		names := make([]string, 0, len(recs))
		for _, rec := range recs {
			if _, dup := byName[rec.Name]; dup {
				c.loadErr = fmt.Errorf("%w: duplicate compound %q", ErrInvalidRecord, rec.Name)
				return
			}
			byName[rec.Name] = rec
			names = append(names, rec.Name)
		}
		c.names = names
		c.byName = byName
	})
	return c.loadErr
}

// Names lists every compound name in source order. The returned slice is the
// caller's to keep.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Lookup returns the record whose name matches exactly, case included.
func (c *Catalog) Lookup(name string) (Compound, error) {
	rec, ok := c.byName[name]
	if !ok {
		return Compound{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return rec, nil
}
