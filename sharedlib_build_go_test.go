//go:build windows && amd64

package practiceloader_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// buildGoSharedLib builds the c-shared package at source into outputPath.
func buildGoSharedLib(t *testing.T, outputPath string, source string) string {
	t.Helper()

	args := []string{
		"build",
		"-buildmode=c-shared",
		"-trimpath",
		"-o", outputPath,
		source,
	}

	baseEnv := overrideEnv(os.Environ(), map[string]string{
		"GOOS":        "windows",
		"GOARCH":      "amd64",
		"CGO_ENABLED": "1",
		"GOCACHE":     filepath.Join(os.TempDir(), "practiceloader-go-build-cache"),
	})

	if _, err := exec.LookPath("zig"); err == nil {
		cmd := exec.Command("go", args...)
		cmd.Env = overrideEnv(baseEnv, map[string]string{
			"CC":  "zig cc -target x86_64-windows-gnu",
			"CXX": "zig c++ -target x86_64-windows-gnu",
		})
		out, err := cmd.CombinedOutput()
		if err == nil {
			cleanupGoSharedSidecars(outputPath)
			return outputPath
		}
		t.Logf("go build %s with zig cc failed, retrying with default compiler: %v\n%s", source, err, out)
	}

	requireCommand(t, "gcc")
	cmd := exec.Command("go", args...)
	cmd.Env = baseEnv
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build go shared lib %s: %v\n%s", source, err, out)
	}

	cleanupGoSharedSidecars(outputPath)
	return outputPath
}

func cleanupGoSharedSidecars(outputPath string) {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	for _, ext := range []string{".h", ".lib", ".exp", ".pdb"} {
		_ = os.Remove(base + ext)
	}
}

func requireCommand(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not found in PATH", name)
	}
}

func overrideEnv(base []string, overrides map[string]string) []string {
	block := make(map[string]struct{}, len(overrides))
	for key := range overrides {
		block[key] = struct{}{}
	}

	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		eq := strings.IndexByte(kv, '=')
		if eq <= 0 {
			continue
		}
		if _, drop := block[kv[:eq]]; drop {
			continue
		}
		out = append(out, kv)
	}

	for key, value := range overrides {
		out = append(out, key+"="+value)
	}
	return out
}
