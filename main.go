package main

import (
	"os"

	"github.com/conneroisu/pkgbuild/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
