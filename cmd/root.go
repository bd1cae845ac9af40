package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hammer",
	Short: "synthetic metric generator",
	Long:  `hammer generates batches of random metrics at a fixed pace for load testing metrics pipelines`,
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file. Flags override its values")
	rootCmd.PersistentFlags().String("logLevel", "info", "Log level. Options=[debug,info,warn,error]")
}
