package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/miradorstack/workload-classifier/internal/services"
)

func newInspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Load the model and print its metadata",
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager, err := loadModel(*configPath, cliLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			info, err := services.NewIntrospectionService(manager).ModelInfo()
			if err != nil {
				return err
			}
			return writeJSON(cmd, info)
		},
	}
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
