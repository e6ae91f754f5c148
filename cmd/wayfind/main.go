package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wayfind/wayfind/internal/cmd"
)

func main() {
	root, err := cmd.NewRootCommand()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
