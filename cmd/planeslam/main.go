// Command planeslam drives the mapping engine from the command line: it
// feeds a synthetic sequence of frames and can trigger
// the control-surface operations (optimize, save-map, save-graph,
// prune) against the resulting map. The surrounding sensor ingest
// (image sync, plane segmentation, visual odometry) that would normally
// produce real frames is out of scope here; this CLI exists to exercise
// the engine end to end, the way a thin command wrapper drives any
// stage pipeline from a terminal.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
