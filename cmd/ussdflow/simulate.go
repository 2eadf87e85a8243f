package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fileAdapter "github.com/katlego-io/ussdflow/internal/adapters/file"
	"github.com/katlego-io/ussdflow/internal/presentation/tui"
	"github.com/katlego-io/ussdflow/pkg/adapters/memory"
	"github.com/katlego-io/ussdflow/pkg/domain"
	"github.com/katlego-io/ussdflow/pkg/engine"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Dial into a flow locally",
	Long: `Runs a flow against the in-memory stack, rendering each screen in the
terminal and reading one input per turn. This is the developer loop for
flow authors; state is discarded on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		flowID, _ := cmd.Flags().GetString("flow")
		phone, _ := cmd.Flags().GetString("phone")
		code, _ := cmd.Flags().GetString("code")

		flows, err := fileAdapter.New(dir)
		if err != nil {
			return fmt.Errorf("load flows: %w", err)
		}
		if flowID == "" {
			ids := flows.FlowIDs()
			if len(ids) != 1 {
				return fmt.Errorf("--flow is required when the directory holds %d flows", len(ids))
			}
			flowID = ids[0]
		}

		eng := engine.New(flows, memory.NewSessionStore())
		renderer := tui.NewRenderer()

		result, err := eng.CreateSession(cmd.Context(), flowID, phone, code)
		if err != nil {
			return err
		}
		fmt.Println(renderer.Notice(fmt.Sprintf("dialing %s as %s", code, phone)))
		fmt.Println(renderer.Screen(result.Text))

		scanner := bufio.NewScanner(os.Stdin)
		for result.Status == domain.StatusActive {
			fmt.Print("> ")
			if !scanner.Scan() {
				_, err := eng.TerminateSession(cmd.Context(), result.Session.SessionID, "simulator hangup")
				if err != nil {
					return err
				}
				fmt.Println(renderer.Notice("hung up"))
				return scanner.Err()
			}

			result, err = eng.ProcessInput(cmd.Context(), result.Session.SessionID, scanner.Text())
			if err != nil {
				return err
			}
			fmt.Println(renderer.Screen(result.Text))
		}

		fmt.Println(renderer.Notice(fmt.Sprintf("session %s", result.Status)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringP("dir", "d", ".", "Directory containing flow documents")
	simulateCmd.Flags().StringP("flow", "f", "", "Flow ID to dial (defaults to the only flow in the directory)")
	simulateCmd.Flags().String("phone", "+15550100", "Simulated phone number")
	simulateCmd.Flags().String("code", "*123#", "Simulated short code")
}
