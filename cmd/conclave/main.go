package main

import (
	"fmt"
	"os"

	_ "github.com/brimdata/conclave/cmd/conclave/compile"
	_ "github.com/brimdata/conclave/cmd/conclave/plan"
	"github.com/brimdata/conclave/cmd/conclave/root"
	_ "github.com/brimdata/conclave/cmd/conclave/run"
)

func main() {
	if err := root.Conclave.Exec(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
