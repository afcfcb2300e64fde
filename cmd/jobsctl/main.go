// Command jobsctl migrates, serves and edits version-guarded job records.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
