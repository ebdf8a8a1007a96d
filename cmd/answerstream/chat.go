package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation against a stream producer",
	Long: `Reads questions from stdin, streams each answer and prints the
aggregated progress (stages, queries, sources) once the stream closes.

Commands inside the session: /new starts a fresh conversation, /quit exits.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, ctrl, cleanup, err := buildClient()
		if err != nil {
			return err
		}
		defer cleanup()
		defer ctrl.Close()

		out := cmd.OutOrStdout()
		sc := bufio.NewScanner(os.Stdin)
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				return errors.Wrap(sc.Err(), "read input")
			}
			line := strings.TrimSpace(sc.Text())
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			case line == "/new":
				store.Reset()
				fmt.Fprintln(out, "started a new conversation")
				continue
			}

			turnID, err := ctrl.Submit(cmd.Context(), line)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
				continue
			}
			ctrl.Wait()

			if turn, ok := store.Turn(turnID); ok {
				renderTurn(out, turn)
			}
		}
	},
}
