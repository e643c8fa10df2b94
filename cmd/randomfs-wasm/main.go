//go:build wasip1

// Command randomfs-wasm builds the randomfs plugin as a WASI reactor module.
package main

import (
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/export"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/plugins/randomfs"
)

func init() {
	export.Register(randomfs.New())
}

func main() {}
