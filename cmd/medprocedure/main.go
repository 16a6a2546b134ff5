// Command medprocedure serves the procedure lookup API and runs one-off
// lookups from the terminal.
package main

import (
	"fmt"
	"os"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
