package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/encodeous/weft/state"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new [name]",
	Short: "Create a router configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		port, _ := strconv.Atoi(cmd.Flag("port").Value.String())

		name := args[0]
		err := state.NameValidator(name)
		if err != nil {
			fmt.Printf("Invalid name: %s\n", name)
			os.Exit(-1)
		}

		key, err := state.GenerateKeypair()
		if err != nil {
			panic(err)
		}
		routerCfg := state.RouterCfg{
			Id:         state.NodeId(name),
			Ip:         cmd.Flag("ip").Value.String(),
			Port:       uint16(port),
			Controller: cmd.Flag("controller").Value.String(),
			Key:        key,
			RoutesDir:  state.DefaultRoutesDir,
		}
		err = state.RouterConfigValidator(&routerCfg)
		if err != nil {
			fmt.Printf("Invalid config: %s\n", err)
			os.Exit(-1)
		}

		err = state.WriteConfig(cmd.Flag("output").Value.String(), &routerCfg)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "init",
}

var newControllerCmd = &cobra.Command{
	Use:   "new-controller",
	Short: "Create a controller configuration",
	Run: func(cmd *cobra.Command, args []string) {
		ctlCfg := state.ControllerCfg{
			Bind:      cmd.Flag("bind").Value.String(),
			RoutesDir: state.DefaultRoutesDir,
			Links:     make([]state.Edge, 0),
		}
		err := state.ControllerConfigValidator(&ctlCfg)
		if err != nil {
			fmt.Printf("Invalid config: %s\n", err)
			os.Exit(-1)
		}
		err = state.WriteConfig(cmd.Flag("output").Value.String(), &ctlCfg)
		if err != nil {
			panic(err)
		}
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(newControllerCmd)

	newCmd.Flags().StringP("output", "o", "router.yaml", "Output file path")
	newCmd.Flags().String("ip", "127.0.0.1", "Address other routers use to reach this router")
	newCmd.Flags().Uint16P("port", "p", 9000, "Port the router listens on")
	newCmd.Flags().String("controller", state.DefaultControllerBind, "Controller address")

	newControllerCmd.Flags().StringP("output", "o", "controller.yaml", "Output file path")
	newControllerCmd.Flags().String("bind", state.DefaultControllerBind, "Address routers dial to register")
}
