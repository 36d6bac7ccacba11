// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService   = "service"
	FieldVersion   = "version"
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientID  = "client_id"
	FieldEvent     = "event"
	FieldTraceID   = "trace_id"

	// Pipeline fields
	FieldStage    = "stage"
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldVideoID  = "video_id"
	FieldProfile  = "profile"
	FieldLanguage = "language"

	// File fields
	FieldPath  = "path"
	FieldBytes = "bytes"
)
