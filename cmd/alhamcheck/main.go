package main

import (
	"os"

	"github.com/example/alhambra-checker/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
