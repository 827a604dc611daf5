package main

import (
	"fmt"
	"os"

	"github.com/benvon/report-templates/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "report-templates-configure",
		Short: "Configuration tool for the Report Templates API",
		Long:  "CLI tool for inspecting spreadsheets, importing them into templates and managing service settings",
	}

	rootCmd.AddCommand(commands.NewInspectCmd())
	rootCmd.AddCommand(commands.NewTemplatesCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
