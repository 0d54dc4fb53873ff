package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/miradorstack/workload-classifier/internal/frame"
)

func TestMetricsRecordValues(t *testing.T) {
	payload := []byte(`{
		"db_time_total": 10.5, "db_time_committed": 9, "cpu_time": 4, "io_time": 3,
		"lock_time": 1, "cpu_percent": 40, "io_percent": 30, "lock_percent": 10,
		"tps": 120, "qps": 800, "avg_query_latency_ms": 2.5, "rollback_rate": 0.1,
		"total_commits": 1000, "total_rollbacks": 3, "total_calls": 5000,
		"active_config": "oltp_tuned"
	}`)
	var rec MetricsRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	values := rec.Values()
	if len(values) != 16 {
		t.Fatalf("expected 16 values, got %d", len(values))
	}
	if values["db_time_total"] != frame.Number(10.5) {
		t.Fatalf("unexpected db_time_total: %+v", values["db_time_total"])
	}
	if values["total_calls"] != frame.Number(5000) {
		t.Fatalf("unexpected total_calls: %+v", values["total_calls"])
	}
	if v := values["active_config"]; !v.IsString || v.Str != "oltp_tuned" {
		t.Fatalf("unexpected active_config: %+v", v)
	}
}

func TestMetricsRecordRejectsFractionalCounter(t *testing.T) {
	var rec MetricsRecord
	if err := json.Unmarshal([]byte(`{"total_commits": 1.5}`), &rec); err == nil {
		t.Fatalf("expected error for fractional counter")
	}
}

func TestCountAcceptsWholeNumbers(t *testing.T) {
	for raw, want := range map[string]Count{
		"42":                  42,
		"42.0":                42,
		"4.2e1":               42,
		"-3":                  -3,
		"0.0":                 0,
		"9007199254740993":    9007199254740993,
		"9223372036854775807": math.MaxInt64,
	} {
		var c Count
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if c != want {
			t.Fatalf("%s: expected %d, got %d", raw, want, c)
		}
	}
}

func TestCountRejectsNonIntegers(t *testing.T) {
	for _, raw := range []string{"42.5", "1e-1", "1e30", "-1e19", `"42"`, "true", "[1]"} {
		var c Count
		err := json.Unmarshal([]byte(raw), &c)
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			t.Fatalf("%s: expected a type error, got %v", raw, err)
		}
	}
}

func TestCountErrorCarriesFieldPath(t *testing.T) {
	var req PredictionRequest
	err := json.Unmarshal([]byte(`{"metrics": {"total_calls": 7.25}}`), &req)
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) || typeErr.Field != "metrics.total_calls" {
		t.Fatalf("expected field path in error, got %#v", err)
	}
}

func TestMetricsRecordValuesOmitsMissing(t *testing.T) {
	tps := 5.0
	rec := MetricsRecord{TPS: &tps}
	values := rec.Values()
	if len(values) != 1 {
		t.Fatalf("expected only tps, got %v", values)
	}

	var nilRec *MetricsRecord
	if len(nilRec.Values()) != 0 {
		t.Fatalf("expected empty values for nil record")
	}
}
