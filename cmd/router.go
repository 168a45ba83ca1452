package cmd

import (
	"github.com/encodeous/weft/core"
	"github.com/spf13/cobra"
)

var routerCmd = &cobra.Command{
	Use:   "router",
	Short: "Run a weft router",
	Long: `Runs a data plane router. The router registers with the controller, relays messages addressed through it and delivers messages addressed to it.
With -i, each line read from stdin is sent:
  <dest> <text>         sends text to dest
  :file <dest> <path>   sends the contents of path to dest`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath := cmd.Flag("config").Value.String()
		logPath := cmd.Flag("log").Value.String()
		interactive, _ := cmd.Flags().GetBool("interactive")
		err := core.RunRouter(cfgPath, logLevel(cmd), logPath, interactive)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "weft",
}

func init() {
	rootCmd.AddCommand(routerCmd)

	routerCmd.Flags().StringP("config", "c", "router.yaml", "Path to the router config")
	routerCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	routerCmd.Flags().BoolP("interactive", "i", false, "Read send commands from stdin")
	routerCmd.Flags().String("log", "", "Also write logs to this file")
}
