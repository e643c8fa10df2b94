package export

import (
	"fmt"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/abi"
)

type entry struct {
	params int
	call   func(d *Dispatcher, p []uint64) []uint64
}

func one32(v uint32) []uint64 { return []uint64{uint64(v)} }

func one64(v uint64) []uint64 { return []uint64{v} }

// entries mirrors the guest export table. Parameters and results use the
// same uint64 stack encoding wazero uses for api.Function calls.
var entries = map[string]entry{
	abi.ExportMalloc: {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Malloc(uint32(p[0]))) }},
	abi.ExportFree: {1, func(d *Dispatcher, p []uint64) []uint64 {
		d.Free(uint32(p[0]))
		return nil
	}},
	abi.ExportNew:        {0, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.New()) }},
	abi.ExportName:       {0, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Name()) }},
	abi.ExportReadme:     {0, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Readme()) }},
	abi.ExportValidate:   {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Validate(uint32(p[0]))) }},
	abi.ExportInitialize: {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Initialize(uint32(p[0]))) }},
	abi.ExportShutdown:   {0, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Shutdown()) }},
	abi.ExportStat:       {1, func(d *Dispatcher, p []uint64) []uint64 { return one64(d.Stat(uint32(p[0]))) }},
	abi.ExportReadDir:    {1, func(d *Dispatcher, p []uint64) []uint64 { return one64(d.ReadDir(uint32(p[0]))) }},
	abi.ExportRead: {3, func(d *Dispatcher, p []uint64) []uint64 {
		return one64(d.Read(uint32(p[0]), int64(p[1]), int64(p[2])))
	}},
	abi.ExportWrite: {3, func(d *Dispatcher, p []uint64) []uint64 {
		return one64(d.Write(uint32(p[0]), uint32(p[1]), uint32(p[2])))
	}},
	abi.ExportCreate:    {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Create(uint32(p[0]))) }},
	abi.ExportMkdir:     {2, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Mkdir(uint32(p[0]), uint32(p[1]))) }},
	abi.ExportRemove:    {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Remove(uint32(p[0]))) }},
	abi.ExportRemoveAll: {1, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.RemoveAll(uint32(p[0]))) }},
	abi.ExportRename: {2, func(d *Dispatcher, p []uint64) []uint64 {
		return one32(d.Rename(uint32(p[0]), uint32(p[1])))
	}},
	abi.ExportChmod: {2, func(d *Dispatcher, p []uint64) []uint64 { return one32(d.Chmod(uint32(p[0]), uint32(p[1]))) }},
}

// Call invokes an entry point by its exported name. It lets an in-process
// host drive a plugin exactly the way it would drive a compiled module.
func (d *Dispatcher) Call(name string, params ...uint64) ([]uint64, error) {
	e, ok := entries[name]
	if !ok {
		return nil, fmt.Errorf("export %q not found", name)
	}
	if len(params) != e.params {
		return nil, fmt.Errorf("export %q: expected %d params, got %d", name, e.params, len(params))
	}
	return e.call(d, params), nil
}
