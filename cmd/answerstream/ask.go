package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/answerstream/pkg/conversation"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Stream a single answer and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, ctrl, cleanup, err := buildClient()
		if err != nil {
			return err
		}
		defer cleanup()
		defer ctrl.Close()

		turnID, err := ctrl.Submit(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		ctrl.Wait()

		turn, ok := store.Turn(turnID)
		if !ok {
			return errors.New("assistant turn vanished from the store")
		}
		renderTurn(cmd.OutOrStdout(), turn)
		if turn.Status == conversation.StatusFailed {
			return errors.New("answer stream failed")
		}
		return nil
	},
}
