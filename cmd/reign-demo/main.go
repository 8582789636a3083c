package main

import (
	"os"

	"github.com/reign-theme/demo-install/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
