package common

import (
	"github.com/google/uuid"
)

// NewAuditID generates a unique audit record ID with the "audit_" prefix
// Format: audit_<uuid>
func NewAuditID() string {
	return "audit_" + uuid.New().String()
}
