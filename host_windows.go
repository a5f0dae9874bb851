//go:build windows

package practiceloader

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/practicetool/practiceloader/config"
	"github.com/practicetool/practiceloader/gate"
	"github.com/practicetool/practiceloader/offsets"
	"github.com/practicetool/practiceloader/overlay"
	"github.com/practicetool/practiceloader/patch"
	"github.com/practicetool/practiceloader/proxy"
)

type windowsHost struct{}

func (windowsHost) ImageBase() (patch.Base, error) {
	var h windows.Handle
	if err := windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, nil, &h); err != nil {
		return 0, fmt.Errorf("practiceloader: main module handle: %w", err)
	}
	return patch.Base(h), nil
}

func (windowsHost) ModulePath(module uintptr) (string, error) {
	buf := make([]uint16, windows.MAX_LONG_PATH)
	n, err := windows.GetModuleFileName(windows.Handle(module), &buf[0], uint32(len(buf)))
	if err != nil {
		return "", fmt.Errorf("practiceloader: module file name: %w", err)
	}
	return windows.UTF16ToString(buf[:n]), nil
}

func (windowsHost) Version() (offsets.Version, error) {
	exe, err := os.Executable()
	if err != nil {
		return offsets.Version{}, fmt.Errorf("practiceloader: host executable: %w", err)
	}
	return offsets.FileVersion(exe)
}

// DefaultDeps wires the Windows implementations.
func DefaultDeps(cfg config.Config, log *zap.Logger) Deps {
	return Deps{
		Loader:  proxy.SystemLoader{},
		Call:    proxy.Syscall,
		Memory:  patch.ProcessMemory{},
		RWX:     patch.ExecuteReadWrite,
		Key:     gate.AsyncKey(cfg.Gate.Key),
		Clock:   gate.SystemClock,
		Host:    windowsHost{},
		Overlay: overlay.NewLibrary(cfg.Resolve(cfg.Overlay.Library), cfg.Overlay.Export, log.Named("overlay")),
		Logger:  log,
	}
}

// Bootstrap builds the Runtime for the DLL at module: config and log live
// beside it.
func Bootstrap(module uintptr) *Runtime {
	dir := "."
	if path, err := (windowsHost{}).ModulePath(module); err == nil {
		dir = filepath.Dir(path)
	}
	cfg, cfgErr := config.Load(config.PathFor(dir))
	log, logErr := NewLogger(cfg.Log, cfg.Resolve(cfg.Log.File))
	if logErr != nil && cfg.Log.Level != config.Default().Log.Level {
		// Retry with the default level so a typo does not silence the log.
		log, logErr = NewLogger(config.Default().Log, cfg.Resolve(cfg.Log.File))
	}
	if cfgErr != nil {
		log.Warn("using default config", zap.String("path", cfg.Path), zap.Error(cfgErr))
	}
	if logErr != nil {
		log.Warn("logging degraded", zap.Error(logErr))
	}
	return New(cfg, DefaultDeps(cfg, log))
}
