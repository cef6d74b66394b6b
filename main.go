package main

import (
	"os"

	"github.com/robalobadob/hiddenpicture/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
