// Package parallel provides chunked data-parallel execution helpers.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// For runs fn for every index in [0, count) across worker goroutines and
// waits for completion. When parallel is false everything runs inline on
// the calling goroutine.
func For(count int, parallel bool, fn func(index int)) {
	if count <= 0 {
		return
	}
	if !parallel || count == 1 {
		for i := 0; i < count; i++ {
			fn(i)
		}
		return
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > count {
		workers = count
	}

	var next int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&next, 1)) - 1
				if i >= count {
					return
				}
				fn(i)
			}
		}()
	}
	wg.Wait()
}

// NumChunks returns how many fixed-size chunks cover count items.
func NumChunks(count, chunkSize int) int {
	if count <= 0 {
		return 0
	}
	return (count + chunkSize - 1) / chunkSize
}

// ChunkRange returns the [first, last) item range of the given chunk.
func ChunkRange(chunk, chunkSize, count int) (int, int) {
	first := chunk * chunkSize
	last := first + chunkSize
	if last > count {
		last = count
	}
	return first, last
}
