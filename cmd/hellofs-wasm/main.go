//go:build wasip1

// Command hellofs-wasm builds the hellofs plugin as a WASI reactor module:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o hellofs.wasm ./cmd/hellofs-wasm
package main

import (
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/export"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/hostfs"
	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/plugins/hellofs"
)

func init() {
	export.Register(hellofs.New(hostfs.New()))
}

func main() {}
