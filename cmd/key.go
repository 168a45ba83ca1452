package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/weft/state"
	"github.com/spf13/cobra"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Generates a new weft Keypair. Outputs Private Key to stdout, Public Key to Stderr.",
	Run: func(cmd *cobra.Command, args []string) {
		key, err := state.GenerateKeypair()
		if err != nil {
			panic(err)
		}
		privKey, err := key.MarshalText()
		if err != nil {
			panic(err)
		}
		pubKey, err := key.Public().MarshalText()
		if err != nil {
			panic(err)
		}
		fmt.Print(string(privKey))
		_, err = fmt.Fprint(os.Stderr, string(pubKey))
		if err != nil {
			panic(err)
		}
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(keyCmd)
}
