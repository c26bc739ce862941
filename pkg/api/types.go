package api

import "time"

// LoginRequest is the body of POST /api/v1/auth/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// AuthResponse is the body returned by a successful login.
type AuthResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// SignRequest is the body of POST /api/v1/sign.
type SignRequest struct {
	// Origin is the zone origin used while parsing the zone text.
	Origin string `json:"origin"`

	// Zone is the unsigned zone in presentation format.
	Zone string `json:"zone"`

	// Validity overrides the configured signature validity when positive,
	// expressed in seconds.
	ValiditySeconds int64 `json:"validity_seconds,omitempty"`
}

// SignResponse is the body returned by a successful signing run.
type SignResponse struct {
	RunID       string    `json:"run_id"`
	Origin      string    `json:"origin"`
	RecordCount int       `json:"record_count"`
	Inception   uint32    `json:"inception"`
	Expiration  uint32    `json:"expiration"`
	SignedAt    time.Time `json:"signed_at"`

	// Zone is the signed zone in presentation format.
	Zone string `json:"zone"`
}

// KeyResponse is the body of GET /api/v1/key.
type KeyResponse struct {
	// DNSKEY is the published public key record in presentation format.
	DNSKEY string `json:"dnskey"`

	// DS is the delegation signer record for the zone origin, when the
	// service is configured with one.
	DS string `json:"ds,omitempty"`

	KeyTag    uint16 `json:"key_tag"`
	Algorithm uint8  `json:"algorithm"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
