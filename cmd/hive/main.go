// Command hive runs the persistence bridge.
package main

import "github.com/mesh-intelligence/hive/internal/cli"

func main() {
	cli.Execute()
}
