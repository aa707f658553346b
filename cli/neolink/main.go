package main

import (
	"os"

	neolinkcmder "github.com/papercomputeco/neolink/cmd/neolink"
)

func main() {
	cmd := neolinkcmder.NewNeolinkCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
