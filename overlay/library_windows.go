//go:build windows

package overlay

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// Library installs hooks through a plugin DLL exporting
//
//	int32_t InstallHooks(uintptr_t module, const wchar_t *config);
//
// A negative return is a failure HRESULT. The plugin must copy config
// before returning.
type Library struct {
	path   string
	export string
	log    *zap.Logger

	mu     sync.Mutex
	handle windows.Handle
}

func NewLibrary(path, export string, log *zap.Logger) *Library {
	if export == "" {
		export = DefaultExport
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{path: path, export: export, log: log}
}

func (l *Library) Install(state State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == 0 {
		h, err := windows.LoadLibrary(l.path)
		if err != nil {
			return fmt.Errorf("overlay: load %s: %w", l.path, err)
		}
		l.handle = h
	}
	fn, err := windows.GetProcAddress(l.handle, l.export)
	if err != nil {
		return fmt.Errorf("overlay: resolve export %q: %w", l.export, err)
	}
	config, err := windows.UTF16PtrFromString(state.ConfigPath)
	if err != nil {
		return fmt.Errorf("overlay: encode config path: %w", err)
	}

	r, _, _ := syscall.SyscallN(fn, state.Module, uintptr(unsafe.Pointer(config)))
	runtime.KeepAlive(config)
	if status := int32(r); status < 0 {
		return fmt.Errorf("overlay: %s returned %#08x", l.export, uint32(status))
	}
	l.log.Info("overlay hooks installed", zap.String("library", l.path))
	return nil
}

func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.handle == 0 {
		return nil
	}
	err := windows.FreeLibrary(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("overlay: free %s: %w", l.path, err)
	}
	return nil
}
