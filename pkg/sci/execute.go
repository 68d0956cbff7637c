package sci

import "sync"

// Result represents the result of a command execution.
type Result struct {
	Value any
	Error error
}

// Execute will run the provided function for all handles in the list with the
// specified level of parallelism. It will return a list of results in the same
// order as the provided handle list.
func Execute(list []*Handle, parallel int, fn func(h *Handle) (any, error)) []Result {
	// ensure parallelism is at least 1
	if parallel < 1 {
		parallel = 1
	}

	// prepare results
	results := make([]Result, len(list))

	// prepare queue
	queue := make(chan int, len(list))
	for i := range list {
		queue <- i
	}
	close(queue)

	// create work group
	var wg sync.WaitGroup

	// add workers
	wg.Add(parallel)

	// spawn workers
	for j := 0; j < parallel; j++ {
		go func() {
			defer wg.Done()

			for i := range queue {
				// yield
				val, err := fn(list[i])

				// store result, each index is written by exactly one worker
				results[i] = Result{Value: val, Error: err}
			}
		}()
	}

	// wait for all to finish
	wg.Wait()

	return results
}
