package main

import (
	"fmt"
	"os"

	"github.com/tazhate/deadlinebot/internal/ctl"
)

var version = "(unknown)"

func main() {
	app := ctl.NewApp(version)

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
