package main

import (
	"os"

	"github.com/ALT-F4-LLC/llm-unify/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
