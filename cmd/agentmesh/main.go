package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmitrev/agentmesh/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "agentmesh",
	Short: "Decompose tasks into workflows and dispatch them to remote workers",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
