package main

import (
	"os"

	"github.com/clipshelf/server/cmd/clipctl/cmd"
)

func main() {
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(1)
	}
}
