package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects a running controller or router through its admin api",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: weft inspect <admin address> [--path /topology]")
			return
		}
		client := http.Client{Timeout: 5 * time.Second}
		res, err := client.Get("http://" + args[0] + cmd.Flag("path").Value.String())
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		if res.StatusCode != http.StatusOK {
			fmt.Println("Error:", res.Status)
		}
		fmt.Print(string(body))
	},
	GroupID: "weft",
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringP("path", "p", "/routes", "Admin endpoint to fetch")
}
