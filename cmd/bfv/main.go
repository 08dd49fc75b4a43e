// bfv decodes binary files with user supplied parser programs.
package main

import (
	"os"

	"github.com/Lee20171010/binary-file-viewer/cmd/bfv/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
