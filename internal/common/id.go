package common

import (
	"github.com/google/uuid"
)

// NewDerivedTextRef generates a unique derived text reference with the "dt_" prefix
// Format: dt_<uuid>
func NewDerivedTextRef() string {
	return "dt_" + uuid.New().String()
}

// NewRunID generates a unique evaluation run ID with the "run_" prefix
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewRequestID generates a short id for correlating HTTP log lines
func NewRequestID() string {
	return "req_" + uuid.New().String()[:8]
}
