package service

import (
	"context"
	"strconv"
	"sync"

	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/table"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// matrixCache holds the matrix built from the current generation of a source.
type matrixCache struct {
	src   table.Source
	group singleflight.Group

	mu     sync.Mutex
	gen    uint64
	matrix *phonology.Matrix
	builds int
}

func newMatrixCache(src table.Source) *matrixCache {
	return &matrixCache{src: src}
}

// get returns the cached matrix, building it on first use. Concurrent callers
// share one build.
func (c *matrixCache) get(ctx context.Context) (*phonology.Matrix, error) {
	c.mu.Lock()
	if c.matrix != nil {
		m := c.matrix
		c.mu.Unlock()
		return m, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// Another flight may have finished between the check above and Do.
		c.mu.Lock()
		if c.matrix != nil && c.gen == gen {
			m := c.matrix
			c.mu.Unlock()
			return m, nil
		}
		c.mu.Unlock()

		m, err := c.build(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.builds++
		// A build that raced with Invalidate is handed out but not kept.
		if c.gen == gen {
			c.matrix = m
		}
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*phonology.Matrix), nil
}

func (c *matrixCache) build(ctx context.Context) (*phonology.Matrix, error) {
	tbl, err := c.src.Load(ctx)
	if err != nil {
		if phonology.IsDataError(err) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &phonology.DataError{Kind: phonology.KindUnreadableSource, Detail: c.src.Name(), Err: err}
	}
	m, err := tbl.Matrix()
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("loaded %s: %d phonemes, %d features", c.src.Name(), m.Len(), len(m.FeatureNames()))
	return m, nil
}

// invalidate drops the cached matrix; the next get rebuilds it.
func (c *matrixCache) invalidate() {
	c.mu.Lock()
	c.gen++
	c.matrix = nil
	c.mu.Unlock()
}

// buildCount reports how many builds completed.
func (c *matrixCache) buildCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}
