// Command overlay is a stand-in hook plugin built with -buildmode=c-shared.
// InstallHooks records the config path it was handed in a marker file.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"os"
	"unicode/utf16"
	"unsafe"
)

const eFail = -0x7fffbffb

func wideString(p *C.uint16_t) string {
	if p == nil {
		return ""
	}
	var s []uint16
	for ptr := unsafe.Pointer(p); *(*uint16)(ptr) != 0; ptr = unsafe.Add(ptr, 2) {
		s = append(s, *(*uint16)(ptr))
	}
	return string(utf16.Decode(s))
}

//export InstallHooks
func InstallHooks(module C.uintptr_t, config *C.uint16_t) C.int32_t {
	marker := os.Getenv("PRACTICELOADER_MARKER")
	if marker == "" || module == 0 {
		return eFail
	}
	if err := os.WriteFile(marker, []byte(wideString(config)), 0o600); err != nil {
		return eFail
	}
	return 0
}

func main() {}
