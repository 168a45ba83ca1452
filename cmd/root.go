package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "weft Overlay Network Simulator CLI",
	Long: `weft simulates a source routed overlay network.
A controller keeps the weighted topology and pushes shortest path route tables to routers, which relay end to end encrypted messages hop by hop.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func logLevel(cmd *cobra.Command) slog.Level {
	if ok, _ := cmd.Flags().GetBool("verbose"); ok {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize weft",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "weft",
		Title: "weft Commands",
	})
}
