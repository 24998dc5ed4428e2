package constraint

import "sync"

// resetRegistry clears registered solvers and the memoized probe.
func resetRegistry() {
	registryMu.Lock()
	solvers = make(map[string]Factory)
	registryMu.Unlock()
	probeOnce = sync.Once{}
	probed = Selection{}
}
