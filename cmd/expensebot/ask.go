package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "ask <message>",
		Short:   "Send one message through the assistant and print the reply",
		Example: `  expensebot ask "Spent 500 on food yesterday"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := build(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*opts.cfg.HTTPTimeout)
			defer cancel()

			reply := app.assistant.HandleMessage(ctx, strings.Join(args, " "))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply)
			return err
		},
	}
}
