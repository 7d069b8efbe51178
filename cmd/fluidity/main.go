package main

import (
	"os"

	"github.com/crimson-sun/fluidity/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
