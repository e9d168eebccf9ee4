package main

import (
	"os"

	"github.com/dshills/halidom/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
