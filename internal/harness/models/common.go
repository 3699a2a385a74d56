// Package models defines request and response types for the management API.
// All types are JSON-serializable; list responses always carry a count and
// never marshal nil slices.
package models

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse represents a simple status response.
type StatusResponse struct {
	Status string `json:"status"`
}
