// Command cachesim simulates CPU caches over memory address traces.
package main

import (
	"github.com/sarchlab/cachesim/cmd"
)

func main() {
	cmd.Execute()
}
