// Command dittotasks is the DittoTasks server and command line client.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(&App{}).Execute(); err != nil {
		os.Exit(1)
	}
}
