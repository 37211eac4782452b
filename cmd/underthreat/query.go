package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ebahrami/underthreat/config"
	"github.com/ebahrami/underthreat/internal/runtime"
	"github.com/ebahrami/underthreat/internal/workflow"
)

func queryCMD() *cobra.Command {
	var cfgPath string
	var showState bool
	var query = &cobra.Command{
		Use:   "query [text]",
		Short: "Run one workflow request and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			svc, err := runtime.New(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			st, err := svc.Engine.Run(cmd.Context(), workflow.Request{Query: strings.Join(args, " ")})
			if err != nil {
				return err
			}

			if showState {
				ui, err := json.MarshalIndent(st.UISummary, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(ui))
				fmt.Println()
			}
			fmt.Println(st.MarkdownReport)
			for _, w := range st.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			for _, e := range st.Errors {
				fmt.Printf("error: %s\n", e)
			}
			return nil
		},
	}
	query.Flags().BoolVar(&showState, "ui", false, "also print the UI summary as JSON")
	query.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return query
}
