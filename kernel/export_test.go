package kernel

// LockCount exposes the number of live per-session lock entries.
func LockCount(k *Kernel) int {
	return k.locks.size()
}
