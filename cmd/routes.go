package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/encodeous/weft/core"
	"github.com/encodeous/weft/state"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Prints the route tables computed from the configured links",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := state.ReadControllerConfig(cmd.Flag("config").Value.String())
		if err != nil {
			panic(err)
		}

		topo := core.NewTopology(nil)
		for _, link := range cfg.Links {
			err = topo.AddEdge(link.U, link.V, link.Weight)
			if err != nil {
				panic(err)
			}
		}

		var out any = topo.AllRouteTables()
		if node := cmd.Flag("node").Value.String(); node != "" {
			tbl, ok := topo.RouteTableFor(state.NodeId(node))
			if !ok {
				fmt.Printf("Node %s is not part of any link\n", node)
				os.Exit(-1)
			}
			out = tbl
		}

		data, err := json.MarshalIndent(out, "", "    ")
		if err != nil {
			panic(err)
		}
		fmt.Println(string(data))
	},
	GroupID: "weft",
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringP("config", "c", "controller.yaml", "Path to the controller config")
	routesCmd.Flags().StringP("node", "n", "", "Only print the table of this node")
}
