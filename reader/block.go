package reader

import (
	"container/list"
	"context"

	"k8s.io/klog/v2"

	"github.com/virtual-zarr/obspec-utils/metrics"
	"github.com/virtual-zarr/obspec-utils/store"
)

// DefaultBlockSize and DefaultMaxCachedBlocks are the block reader's
// defaults: 1 MiB blocks, up to 32 cached at once.
const (
	DefaultBlockSize       = 1 * 1024 * 1024
	DefaultMaxCachedBlocks = 32
)

type blockEntry struct {
	index int64
	data  []byte
}

// Block is a block-aligned LRU cache of fixed-size blocks (C3.3), the
// primary random-access reader: reads fetch only the uncached blocks a
// request touches, in one GetRanges call, and evict oldest-first past
// MaxCachedBlocks.
type Block struct {
	ctx             context.Context
	store           store.Store
	path            string
	blockSize       int64
	maxCachedBlocks int

	size      int64
	sizeKnown bool
	position  int64

	cache   map[int64]*list.Element // block index -> element (Value is *blockEntry)
	lruList *list.List              // front = MRU, back = LRU
}

// NewBlock creates a Block reader. blockSize/maxCachedBlocks <= 0 use the
// defaults.
func NewBlock(ctx context.Context, s store.Store, path string, blockSize int64, maxCachedBlocks int) *Block {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if maxCachedBlocks <= 0 {
		maxCachedBlocks = DefaultMaxCachedBlocks
	}
	return &Block{
		ctx: ctx, store: s, path: path,
		blockSize: blockSize, maxCachedBlocks: maxCachedBlocks,
		cache: make(map[int64]*list.Element), lruList: list.New(),
	}
}

// NewParallel is the back-compat alias for the block reader under its
// legacy parameter names (chunk_size/max_cached_chunks); behavior is
// identical.
func NewParallel(ctx context.Context, s store.Store, path string, chunkSize int64, maxCachedChunks int) *Block {
	return NewBlock(ctx, s, path, chunkSize, maxCachedChunks)
}

func (b *Block) ensureSize() error {
	if b.sizeKnown {
		return nil
	}
	size, err := headSize(b.ctx, b.store, b.path)
	if err != nil {
		return err
	}
	b.size = size
	b.sizeKnown = true
	return nil
}

func (b *Block) blockRange(index int64) (start, end int64) {
	start = index * b.blockSize
	end = start + b.blockSize
	if end > b.size {
		end = b.size
	}
	return start, end
}

func (b *Block) touch(index int64) {
	if el, ok := b.cache[index]; ok {
		b.lruList.MoveToFront(el)
	}
}

func (b *Block) evict() {
	for b.lruList.Len() > b.maxCachedBlocks {
		oldest := b.lruList.Back()
		idx := oldest.Value.(*blockEntry).index
		b.lruList.Remove(oldest)
		delete(b.cache, idx)
		metrics.BlockCacheEvictionsTotal.WithLabelValues(b.path).Inc()
		klog.V(5).Infof("reader.Block: evicted block %d for %q", idx, b.path)
	}
}

// Read computes the touched block
// range, fetch every currently-uncached block in one GetRanges call, insert
// and MRU-touch all touched blocks, then evict down to MaxCachedBlocks, and
// assemble the result by slicing each block at its overlap with [start,end).
func (b *Block) Read(n int64) ([]byte, error) {
	if err := b.ensureSize(); err != nil {
		return nil, err
	}
	start, end := clampRead(b.position, n, b.size)
	if start >= end {
		b.position = start
		return []byte{}, nil
	}

	firstBlock := start / b.blockSize
	lastBlock := (end - 1) / b.blockSize

	var missingIdx []int64
	var missingStarts, missingEnds []int64
	for idx := firstBlock; idx <= lastBlock; idx++ {
		if _, ok := b.cache[idx]; !ok {
			s, e := b.blockRange(idx)
			missingIdx = append(missingIdx, idx)
			missingStarts = append(missingStarts, s)
			missingEnds = append(missingEnds, e)
		}
	}

	if len(missingIdx) > 0 {
		parts, err := b.store.GetRanges(b.ctx, b.path, missingStarts, missingEnds)
		if err != nil {
			return nil, err
		}
		for i, idx := range missingIdx {
			el := b.lruList.PushFront(&blockEntry{index: idx, data: parts[i]})
			b.cache[idx] = el
		}
	}

	for idx := firstBlock; idx <= lastBlock; idx++ {
		b.touch(idx)
	}
	b.evict()

	out := make([]byte, 0, end-start)
	for idx := firstBlock; idx <= lastBlock; idx++ {
		blockStart, blockEnd := b.blockRange(idx)
		data := b.cache[idx].Value.(*blockEntry).data
		overlapStart := max64(start, blockStart)
		overlapEnd := min64(end, blockEnd)
		out = append(out, data[overlapStart-blockStart:overlapEnd-blockStart]...)
	}

	b.position = end
	return out, nil
}

// ReadAll uses a plain Get and does not populate the block cache.
func (b *Block) ReadAll() ([]byte, error) {
	res, err := b.store.Get(b.ctx, b.path, nil)
	if err != nil {
		return nil, err
	}
	return res.Bytes(), nil
}

// Seek never invalidates the block cache.
func (b *Block) Seek(offset int64, whence int) (int64, error) {
	if err := b.ensureSize(); err != nil {
		return 0, err
	}
	target, err := resolveSeek(b.position, offset, whence, b.size)
	if err != nil {
		return 0, err
	}
	b.position = target
	return target, nil
}

func (b *Block) Tell() int64 { return b.position }

// Close clears the block cache.
func (b *Block) Close() error {
	b.cache = make(map[int64]*list.Element)
	b.lruList = list.New()
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
