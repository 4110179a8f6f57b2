package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// A .env file in the working directory feeds the TIMELINEX_* flag
	// variables. Variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "timelinex: .env:", err)
		os.Exit(1)
	}
	if err := Execute(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "timelinex:", err)
		os.Exit(1)
	}
}
