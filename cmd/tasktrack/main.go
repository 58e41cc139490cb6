package main

import (
	"os"

	"github.com/tgienger/tasktrack/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
