// Command oxy-render drives the deferred pipeline: headless software frames, a live GPU window, or
// validation of the embedded shaders.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
