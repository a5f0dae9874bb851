//go:build windows

package gate

import "golang.org/x/sys/windows"

var procGetAsyncKeyState = windows.NewLazySystemDLL("user32.dll").NewProc("GetAsyncKeyState")

// AsyncKey polls GetAsyncKeyState for the virtual key vk. The key is down
// when the high bit of the returned SHORT is set.
func AsyncKey(vk uint8) Key {
	return KeyFunc(func() bool {
		r, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
		return int16(r) < 0
	})
}
