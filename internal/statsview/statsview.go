// Package statsview serves runtime statistics of the emulator process over
// HTTP, using github.com/go-echarts/statsview.
//
// After launch, graphs are available at:
//
//	localhost:12600/debug/statsview
package statsview

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	DefaultAddress = "localhost:12600"
	url            = "/debug/statsview"
)

// Launch starts the server in a new goroutine and tells the user where to
// find it.
func Launch(addr string, output io.Writer) {
	if addr == "" {
		addr = DefaultAddress
	}

	go func() {
		viewer.SetConfiguration(viewer.WithAddr(addr))
		mgr := statsview.New()
		mgr.Start()
	}()

	fmt.Fprintf(output, "stats server available at %s%s\n", addr, url)
}
