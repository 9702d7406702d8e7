package cli

import (
	"context"
	"slices"
	"sync"

	"bootkit/internal/providers"
)

type describeFunc func(ctx context.Context, name string) (*providers.RuntimeInfo, error)

// filterByState looks names up concurrently and keeps those in state want.
// Lookup failures drop the name. Results keep the input order.
func filterByState(ctx context.Context, names []string, want providers.InstanceState, describe describeFunc) []string {
	var (
		mu      sync.Mutex
		matched = make(map[string]bool)
		wg      sync.WaitGroup
	)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			info, err := describe(ctx, name)
			if err != nil || info.State != want {
				return
			}
			mu.Lock()
			matched[name] = true
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return slices.DeleteFunc(slices.Clone(names), func(n string) bool { return !matched[n] })
}
