package main

import (
	"os"

	"pixstore/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
