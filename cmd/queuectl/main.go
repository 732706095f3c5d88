package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/reelqueue/platform/pkg/common/config"
)

func main() {
	cmd := newRootCommand(config.Load)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
