// Package alerts keeps the bounded, most-recent-first list of alerts received
// from the stream and acknowledges them against the backend.
package alerts

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	phmerrors "github.com/vibesense/phmwatch/internal/errors"
)

// Severity levels the backend assigns to threshold alerts.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one alert pushed by the backend.
type Alert struct {
	ID             string    `json:"alert_id"`
	SensorID       string    `json:"sensor_id,omitempty"`
	AlertType      string    `json:"alert_type,omitempty"`
	Severity       string    `json:"severity,omitempty"`
	Message        string    `json:"message"`
	FeatureName    string    `json:"feature_name,omitempty"`
	CurrentValue   *float64  `json:"current_value,omitempty"`
	ThresholdValue *float64  `json:"threshold_value,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// wireAlert accepts numeric or string identifiers; the backend emits database
// ids as integers.
type wireAlert struct {
	ID             flexString `json:"alert_id"`
	SensorID       flexString `json:"sensor_id"`
	AlertType      string     `json:"alert_type"`
	Severity       string     `json:"severity"`
	Message        string     `json:"message"`
	FeatureName    string     `json:"feature_name"`
	CurrentValue   *float64   `json:"current_value"`
	ThresholdValue *float64   `json:"threshold_value"`
}

// Parse decodes an alert payload. A missing alert_id leaves ID empty.
func Parse(data []byte) (Alert, error) {
	var w wireAlert
	if err := json.Unmarshal(data, &w); err != nil {
		return Alert{}, phmerrors.WrapWithCode(err, phmerrors.ErrDecode,
			"Cannot decode alert payload", "")
	}
	return Alert{
		ID:             string(w.ID),
		SensorID:       string(w.SensorID),
		AlertType:      w.AlertType,
		Severity:       w.Severity,
		Message:        w.Message,
		FeatureName:    w.FeatureName,
		CurrentValue:   w.CurrentValue,
		ThresholdValue: w.ThresholdValue,
	}, nil
}

// Critical reports whether the alert has critical severity.
func (a Alert) Critical() bool {
	return a.Severity == SeverityCritical
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}
