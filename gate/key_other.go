//go:build !windows

package gate

// AsyncKey has no global key state to poll outside windows; the key never
// reads as down, so the gate always times out.
func AsyncKey(vk uint8) Key {
	_ = vk
	return KeyFunc(func() bool { return false })
}
