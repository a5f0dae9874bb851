//go:build windows && amd64

// Command dinput8 is built with -buildmode=c-shared and dropped next to the
// host executable as dinput8.dll:
//
//	go build -buildmode=c-shared -o dinput8.dll ./cmd/dinput8
package main

/*
#include <stdint.h>

// Set by DllMain before any export can run.
extern uintptr_t practiceloader_module;
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/practicetool/practiceloader"
	"github.com/practicetool/practiceloader/proxy"
)

// loader builds the runtime on first use from either export.
var loader = sync.OnceValue(func() *practiceloader.Runtime {
	return practiceloader.Bootstrap(uintptr(C.practiceloader_module))
})

//export DirectInput8Create
func DirectInput8Create(hinst C.uintptr_t, version C.uint32_t, riid unsafe.Pointer, out unsafe.Pointer, outer C.uintptr_t) C.int32_t {
	return C.int32_t(loader().DirectInput8Create(proxy.Args{
		Instance: uintptr(hinst),
		Version:  uint32(version),
		IID:      uintptr(riid),
		Out:      uintptr(out),
		Outer:    uintptr(outer),
	}))
}

//export practiceloaderAttach
func practiceloaderAttach(module C.uintptr_t, reason C.uint32_t) {
	loader().DllMain(uintptr(module), uint32(reason))
}

func main() {}
