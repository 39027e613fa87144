package icefloe

import "sync"

// parallel splits the index range [0, n) across workersCount goroutines
// and waits for completion. Index-based so that callers can derive
// deterministic per-item state (cluster solver seeds) from i.
func parallel(workersCount, n int, fn func(i int)) {
	if workersCount < 1 {
		workersCount = 1
	}
	chunkSize := (n + workersCount - 1) / workersCount

	var wg sync.WaitGroup
	for workerID := 0; workerID < workersCount; workerID++ {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i)
			}
		}(workerID*chunkSize, min((workerID+1)*chunkSize, n))
	}
	wg.Wait()
}
