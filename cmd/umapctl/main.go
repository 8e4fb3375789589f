package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

func main() {
	if err := fang.Execute(context.Background(), NewRootCmd()); err != nil {
		os.Exit(1)
	}
}
