//go:build windows && amd64

package practiceloader_test

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"

	"github.com/practicetool/practiceloader/config"
)

// buildLoader builds the proxy DLL under name with the stand-in overlay
// plugin beside it.
func buildLoader(t *testing.T, name string) string {
	t.Helper()

	// Go DLLs cannot be unloaded, so the files stay locked until the test
	// process exits and t.TempDir cleanup would fail.
	outDir, err := os.MkdirTemp("", "practiceloader-dll-*")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(outDir)
	})
	dllPath := buildGoSharedLib(t, filepath.Join(outDir, name), "./cmd/dinput8")
	buildGoSharedLib(t, filepath.Join(outDir, config.Default().Overlay.Library), "./testdata/go/overlay")
	return dllPath
}

func directInput8Create(t *testing.T, handle windows.Handle) uintptr {
	t.Helper()

	addr, err := windows.GetProcAddress(handle, "DirectInput8Create")
	require.NoError(t, err)

	var instance windows.Handle
	require.NoError(t, windows.GetModuleHandleEx(windows.GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT, nil, &instance))
	var out uintptr
	// A nil IID makes the real library reject the call without creating
	// anything, which is enough to compare statuses.
	r, _, _ := syscall.SyscallN(addr, uintptr(instance), 0x0800, 0, uintptr(unsafe.Pointer(&out)), 0)
	return r
}

func TestDirectLoadInstallsOverlay(t *testing.T) {
	dllPath := buildLoader(t, "practiceloader.dll")
	marker := filepath.Join(t.TempDir(), "overlay_marker.txt")
	t.Setenv("PRACTICELOADER_MARKER", marker)
	t.Setenv(config.EnvPath, "")
	t.Setenv(config.EnvLogLevel, "debug")

	handle, err := windows.LoadLibrary(dllPath)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 10*time.Second, 50*time.Millisecond, "overlay plugin never ran")

	got, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.True(t, strings.EqualFold(filepath.Join(filepath.Dir(dllPath), config.FileName), string(got)),
		"plugin received config path %q", got)

	logData, err := os.ReadFile(filepath.Join(filepath.Dir(dllPath), "practiceloader.log"))
	require.NoError(t, err)
	require.Contains(t, string(logData), "identity")
	require.Contains(t, string(logData), "direct")

	system, err := windows.LoadLibraryEx("dinput8.dll", 0, windows.LOAD_LIBRARY_SEARCH_SYSTEM32)
	if err != nil {
		t.Skipf("system dinput8.dll unavailable: %v", err)
	}
	t.Cleanup(func() { _ = windows.FreeLibrary(system) })

	require.Equal(t, directInput8Create(t, system), directInput8Create(t, handle),
		"status must pass through unchanged")
}
