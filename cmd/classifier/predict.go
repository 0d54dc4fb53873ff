package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gin-gonic/gin/binding"
	"github.com/spf13/cobra"

	"github.com/miradorstack/workload-classifier/internal/api"
	"github.com/miradorstack/workload-classifier/internal/models"
	"github.com/miradorstack/workload-classifier/internal/services"
)

func newPredictCmd(configPath *string) *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one request body read from a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			var req models.PredictionRequest
			if err := binding.JSON.BindBody(data, &req); err != nil {
				return errors.New(api.InvalidRequestDetail(err))
			}

			logger := cliLogger(cmd.ErrOrStderr())
			manager, err := loadModel(*configPath, logger)
			if err != nil {
				return err
			}
			result, err := services.NewPredictionService(logger, manager, nil, 0).Predict(cmd.Context(), req.Metrics)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "JSON file holding {\"metrics\": {...}}")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
