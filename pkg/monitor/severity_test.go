// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/notify"
)

func TestClassify(t *testing.T) {
	threshold := config.Threshold{WarningPercent: 80, CriticalPercent: 90}

	tests := []struct {
		name  string
		value float64
		want  Severity
	}{
		{"below warning", 79.99, SeverityOK},
		{"zero", 0, SeverityOK},
		{"exactly warning", 80, SeverityWarning},
		{"between warning and critical", 85, SeverityWarning},
		{"exactly critical", 90, SeverityCritical},
		{"above critical", 120, SeverityCritical},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.value, threshold))
		})
	}
}

func TestClassifyFractionalThresholds(t *testing.T) {
	// Complaint rate thresholds are fractions of a percent.
	threshold := config.Threshold{WarningPercent: 0.01, CriticalPercent: 0.04}

	assert.Equal(t, SeverityOK, Classify(0.005, threshold))
	assert.Equal(t, SeverityWarning, Classify(0.02, threshold))
	assert.Equal(t, SeverityCritical, Classify(0.04, threshold))
}

func TestSeverityStatus(t *testing.T) {
	assert.Equal(t, notify.StatusOK, SeverityOK.Status())
	assert.Equal(t, notify.StatusWarning, SeverityWarning.Status())
	assert.Equal(t, notify.StatusCritical, SeverityCritical.Status())

	assert.Equal(t, "ok", SeverityOK.String())
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "critical", SeverityCritical.String())
}
