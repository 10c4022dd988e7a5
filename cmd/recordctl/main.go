// Command recordctl inspects and edits records described by YAML type
// descriptors.
package main

import (
	"os"

	"github.com/mesh-intelligence/recordkit/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
