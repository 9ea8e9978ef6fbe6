// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"github.com/telekom/ses-account-monitor/pkg/audit"
	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/notify"
)

// Severity is the classification of a metric value against its threshold.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// Classify compares a percentage-form value against a threshold. Values at
// or above the critical cutoff are critical, at or above the warning cutoff
// warning, anything below is ok.
func Classify(value float64, t config.Threshold) Severity {
	switch {
	case value >= t.CriticalPercent:
		return SeverityCritical
	case value >= t.WarningPercent:
		return SeverityWarning
	default:
		return SeverityOK
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "ok"
	}
}

// Status returns the severity as it appears in notifications.
func (s Severity) Status() string {
	switch s {
	case SeverityCritical:
		return notify.StatusCritical
	case SeverityWarning:
		return notify.StatusWarning
	default:
		return notify.StatusOK
	}
}

// AuditSeverity maps the severity onto the audit trail's vocabulary.
func (s Severity) AuditSeverity() audit.Severity {
	switch s {
	case SeverityCritical:
		return audit.SeverityCritical
	case SeverityWarning:
		return audit.SeverityWarning
	default:
		return audit.SeverityOK
	}
}
