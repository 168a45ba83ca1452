package cmd

import (
	"github.com/encodeous/weft/core"
	"github.com/spf13/cobra"
)

var controllerCmd = &cobra.Command{
	Use:   "controller",
	Short: "Run the weft controller",
	Long:  `Runs the control plane. Routers dial the controller to register, and receive a new route table whenever the topology changes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath := cmd.Flag("config").Value.String()
		logPath := cmd.Flag("log").Value.String()
		err := core.RunController(cfgPath, logLevel(cmd), logPath)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "weft",
}

func init() {
	rootCmd.AddCommand(controllerCmd)

	controllerCmd.Flags().StringP("config", "c", "controller.yaml", "Path to the controller config")
	controllerCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	controllerCmd.Flags().String("log", "", "Also write logs to this file")
}
