package main

import (
	"fmt"
	"os"

	"github.com/soyunomas/dupescan/internal/cmd"
)

// Version es la versión actual de dupescan
const Version = "1.0.0"

func main() {
	rootCmd := cmd.NewRootCommand(Version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Error fatal: %v\n", err)
		os.Exit(1)
	}
}
