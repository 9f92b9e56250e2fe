package main

import (
	"os"

	"lockchat/cmd/lockchat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
