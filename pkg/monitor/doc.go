// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package monitor implements the SES account checks.
//
// One invocation reads the account sending quota and the CloudWatch
// reputation metrics, classifies each value against its warning and
// critical thresholds, and queues notifications describing the result.
// Under the "managed" strategy a critical reputation additionally pauses
// account sending, and sending is resumed once the reputation drops back
// below critical. Delivery failures fail the invocation so the scheduler
// retries it.
package monitor
