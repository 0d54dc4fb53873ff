package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miradorstack/workload-classifier/internal/catboost/catboosttest"
	"github.com/miradorstack/workload-classifier/internal/models"
)

func writeConfig(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	artifact := filepath.Join(dir, "catboost_model.json")
	if err := os.WriteFile(artifact, catboosttest.WorkloadModel(), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	body := "model:\n  artifactPath: " + artifact + "\n  metadataPath: " + filepath.Join(dir, "model_info.json") + "\n"
	path = filepath.Join(dir, "classifier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir, path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestInspectCommand(t *testing.T) {
	_, cfgPath := writeConfig(t)

	out, err := execute(t, "inspect", "--config", cfgPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var info models.ModelInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if info.NFeatures != 16 || len(info.Classes) != 3 || info.Generation != 1 {
		t.Fatalf("unexpected model info: %+v", info)
	}
}

func TestInspectCommandMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "classifier.yaml")
	body := "model:\n  artifactPath: " + filepath.Join(dir, "absent.json") + "\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := execute(t, "inspect", "--config", cfgPath); err == nil {
		t.Fatalf("expected inspect to fail without an artifact")
	}
}

func TestPredictCommand(t *testing.T) {
	dir, cfgPath := writeConfig(t)
	input := filepath.Join(dir, "request.json")
	request := `{"metrics": {
  "db_time_total": 120, "db_time_committed": 110, "cpu_time": 60, "io_time": 40,
  "lock_time": 20, "cpu_percent": 50, "io_percent": 33, "lock_percent": 17,
  "tps": 20, "qps": 120, "avg_query_latency_ms": 200, "rollback_rate": 0.1,
  "total_commits": 500, "total_rollbacks": 2, "total_calls": 4000,
  "active_config": "batch_tuned"
}}`
	if err := os.WriteFile(input, []byte(request), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	out, err := execute(t, "predict", "--config", cfgPath, "--input", input)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	var result models.PredictionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if result.PredictedScenario != "batch_heavy" || result.Status != models.StatusSuccess {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestPredictCommandRejectsIncompleteRecord(t *testing.T) {
	dir, cfgPath := writeConfig(t)
	input := filepath.Join(dir, "request.json")
	if err := os.WriteFile(input, []byte(`{"metrics": {"tps": 1}}`), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	_, err := execute(t, "predict", "--config", cfgPath, "--input", input)
	if err == nil || !strings.Contains(err.Error(), "invalid request") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "workload-classifier dev") {
		t.Fatalf("unexpected version output %q", out)
	}
}
