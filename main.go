// Idiomatic entrypoint for the Cobra CLI that delegates to the Cobra
// root command in cmd/root.go.

package main

import (
	"github.com/rtschedsim/rtschedsim/cmd"
)

func main() {
	cmd.Execute()
}
