package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/miradorstack/workload-classifier/internal/config"
	"github.com/miradorstack/workload-classifier/internal/model"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "classifier",
		Short:        "Database workload scenario classifier",
		Long:         "Serves a CatBoost workload classifier over HTTP and gRPC health, or runs it locally.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newInspectCmd(&configPath),
		newPredictCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

// cliLogger keeps diagnostics on stderr so command output stays parseable.
func cliLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// loadModel reads config and loads the model once for one-shot commands.
func loadModel(configPath string, logger *slog.Logger) (*model.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	manager := model.NewManager(model.Options{
		ArtifactPath: cfg.Model.ArtifactPath,
		MetadataPath: cfg.Model.MetadataPath,
	}, logger)
	if err := manager.Load(); err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return manager, nil
}
