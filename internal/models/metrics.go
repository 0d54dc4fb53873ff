package models

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/miradorstack/workload-classifier/internal/frame"
)

// Count is a non-fractional counter. Whole numbers written in float or
// exponent form (1000.0, 1e3) are accepted.
type Count int64

// UnmarshalJSON implements json.Unmarshaler. Rejections are reported as
// *json.UnmarshalTypeError so the decoder attaches the field path.
func (c *Count) UnmarshalJSON(data []byte) error {
	reject := &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf(c).Elem()}
	if len(data) == 0 || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return reject
	}
	n := json.Number(data)
	if i, err := n.Int64(); err == nil {
		*c = Count(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil || math.Trunc(f) != f || f < math.MinInt64 || f >= math.MaxInt64 {
		return reject
	}
	*c = Count(f)
	return nil
}

// MetricsRecord is one sample of database workload metrics. Every field is
// required; pointers let the binder tell a missing field from a zero value.
type MetricsRecord struct {
	DBTimeTotal       *float64 `json:"db_time_total" binding:"required"`
	DBTimeCommitted   *float64 `json:"db_time_committed" binding:"required"`
	CPUTime           *float64 `json:"cpu_time" binding:"required"`
	IOTime            *float64 `json:"io_time" binding:"required"`
	LockTime          *float64 `json:"lock_time" binding:"required"`
	CPUPercent        *float64 `json:"cpu_percent" binding:"required"`
	IOPercent         *float64 `json:"io_percent" binding:"required"`
	LockPercent       *float64 `json:"lock_percent" binding:"required"`
	TPS               *float64 `json:"tps" binding:"required"`
	QPS               *float64 `json:"qps" binding:"required"`
	AvgQueryLatencyMS *float64 `json:"avg_query_latency_ms" binding:"required"`
	RollbackRate      *float64 `json:"rollback_rate" binding:"required"`
	TotalCommits      *Count   `json:"total_commits" binding:"required"`
	TotalRollbacks    *Count   `json:"total_rollbacks" binding:"required"`
	TotalCalls        *Count   `json:"total_calls" binding:"required"`
	ActiveConfig      *string  `json:"active_config" binding:"required"`
}

// PredictionRequest is the body of POST /predict.
type PredictionRequest struct {
	Metrics *MetricsRecord `json:"metrics" binding:"required"`
}

// Values returns the record keyed by feature name. Nil fields are omitted so
// frame construction reports them as missing.
func (r *MetricsRecord) Values() map[string]frame.Value {
	if r == nil {
		return map[string]frame.Value{}
	}
	values := make(map[string]frame.Value, 16)
	floats := []struct {
		name string
		v    *float64
	}{
		{"db_time_total", r.DBTimeTotal},
		{"db_time_committed", r.DBTimeCommitted},
		{"cpu_time", r.CPUTime},
		{"io_time", r.IOTime},
		{"lock_time", r.LockTime},
		{"cpu_percent", r.CPUPercent},
		{"io_percent", r.IOPercent},
		{"lock_percent", r.LockPercent},
		{"tps", r.TPS},
		{"qps", r.QPS},
		{"avg_query_latency_ms", r.AvgQueryLatencyMS},
		{"rollback_rate", r.RollbackRate},
	}
	for _, f := range floats {
		if f.v != nil {
			values[f.name] = frame.Number(*f.v)
		}
	}
	counters := []struct {
		name string
		v    *Count
	}{
		{"total_commits", r.TotalCommits},
		{"total_rollbacks", r.TotalRollbacks},
		{"total_calls", r.TotalCalls},
	}
	for _, c := range counters {
		if c.v != nil {
			values[c.name] = frame.Number(float64(*c.v))
		}
	}
	if r.ActiveConfig != nil {
		values["active_config"] = frame.String(*r.ActiveConfig)
	}
	return values
}
