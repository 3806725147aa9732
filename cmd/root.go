package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hackmate",
	Short: "HackMate realtime team chat and presence gateway.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the realtime gateway",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
