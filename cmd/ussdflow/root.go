package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ussdflow",
	Short: "ussdflow executes operator-authored USSD dialog flows",
	Long: `ussdflow is the session execution engine behind interactive USSD menus.
It serves the gateway API, validates authored flow documents, and can
simulate dialing into a flow locally.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
