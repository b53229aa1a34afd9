package main

import (
	"os"

	"github.com/sheikh-saqib/khata-ledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
