package main

import (
	"github.com/distworks/mutexkit/cmd/dmesim/commands"
)

func main() {
	commands.Execute()
}
