// Command libnibb builds the C shared library (go build -buildmode=c-shared).
//
// Strings returned by load_snippet_ffi and load_all_ffi belong to the caller
// and must be passed to free_string_ffi exactly once. A NULL return means the
// result buffer could not be allocated.
package main

/*
#include <stdbool.h>
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"sync"
	"unsafe"

	"github.com/roguepikachu/nibb/internal/app"
	"github.com/roguepikachu/nibb/internal/config"
	"github.com/roguepikachu/nibb/internal/ffi"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// cAllocator hands out malloc'd NUL-terminated copies the host can free.
type cAllocator struct{}

func (cAllocator) Alloc(data []byte) (unsafe.Pointer, error) {
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	return C.CBytes(buf), nil
}

func (cAllocator) Free(p unsafe.Pointer) { C.free(p) }

var (
	once sync.Once
	b    *ffi.Bridge
)

// bridge resolves the process-wide store on first use.
func bridge() *ffi.Bridge {
	once.Do(func() {
		ctx := context.Background()
		var store ffi.Store
		conf, err := config.Load()
		if err == nil {
			logger.InitLogging(conf.LogLevel, conf.LogFormat)
			store, _, err = app.Open(ctx, conf)
		}
		if err != nil {
			logger.Error(ctx, "snippet store unavailable: %v", err)
			store = ffi.Unavailable{Err: err}
		}
		b = ffi.NewBridge(store, ffi.NewTable(cAllocator{}))
	})
	return b
}

func arg(p *C.char) ffi.Arg {
	return ffi.FromPointer(unsafe.Pointer(p))
}

//export load_snippet_ffi
func load_snippet_ffi(name *C.char) *C.char {
	return (*C.char)(bridge().Load(arg(name)))
}

//export save_snippet_ffi
func save_snippet_ffi(snippetJSON *C.char) C.bool {
	return C.bool(bridge().Save(arg(snippetJSON)))
}

//export delete_snippet_ffi
func delete_snippet_ffi(name *C.char) C.bool {
	return C.bool(bridge().Delete(arg(name)))
}

//export load_all_ffi
func load_all_ffi() *C.char {
	return (*C.char)(bridge().LoadAll())
}

//export save_all_ffi
func save_all_ffi(snippetsJSON *C.char) C.bool {
	return C.bool(bridge().SaveAll(arg(snippetsJSON)))
}

//export free_string_ffi
func free_string_ffi(s *C.char) {
	if s == nil {
		return
	}
	bridge().Release(unsafe.Pointer(s))
}

func main() {}
