package realtime

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	phmerrors "github.com/vibesense/phmwatch/internal/errors"
)

// FeatureUpdate is one decoded feature_update payload.
type FeatureUpdate struct {
	// Timestamp is resolved from "timestamp", then "window_end". It is zero
	// when neither is present or parseable.
	Timestamp time.Time
	// Values holds every numeric member of the payload.
	Values map[string]float64
}

// ParseFeatureUpdate decodes a feature payload. Non-numeric members other than
// the timestamps are ignored.
func ParseFeatureUpdate(payload any) (FeatureUpdate, error) {
	data, err := payloadBytes(payload)
	if err != nil {
		return FeatureUpdate{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return FeatureUpdate{}, phmerrors.WrapWithCode(err, phmerrors.ErrDecode,
			"Cannot decode feature update", "")
	}

	u := FeatureUpdate{Values: make(map[string]float64, len(fields))}
	for _, key := range []string{"timestamp", "window_end"} {
		if raw, ok := fields[key]; ok {
			if ts, ok := parseTime(raw); ok {
				u.Timestamp = ts
				break
			}
		}
	}

	for key, raw := range fields {
		if key == "timestamp" || key == "window_end" || key == "window_start" {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			u.Values[key] = v
		}
	}
	return u, nil
}

// parseTime accepts any layout dateparse understands, or epoch seconds.
func parseTime(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		ts, err := dateparse.ParseIn(s, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil && secs > 0 {
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
	}
	return time.Time{}, false
}

// payloadBytes recovers the JSON bytes of a dispatcher payload.
func payloadBytes(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	case string:
		return []byte(p), nil
	case nil:
		return nil, phmerrors.New(phmerrors.ErrDecode, "Empty payload", "")
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return nil, phmerrors.WrapWithCode(err, phmerrors.ErrDecode, "Cannot re-encode payload", "")
		}
		return data, nil
	}
}

// FormatValue renders a feature value with four decimals, or "--" when absent.
func FormatValue(v float64, ok bool) string {
	if !ok || math.IsNaN(v) {
		return "--"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
