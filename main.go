package main

import (
	"os"

	"github.com/mattsolo1/spkg/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
