package api

import (
	"github.com/orawipe/orawipe/internal/config"
	"github.com/orawipe/orawipe/internal/engine"
)

// ConnectionRequest is the database connection part of a clean request.
// The password may be a literal or an AWS Secrets Manager ARN.
type ConnectionRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`
}

// PayloadRequest is the run description part of a clean request.
type PayloadRequest struct {
	TargetSchema string `json:"target_schema"`
	Parallel     int    `json:"parallel,omitempty"`
	Force        bool   `json:"force,omitempty"`
}

// CleanRequest is the request body for POST /api/clean.
type CleanRequest struct {
	Connection ConnectionRequest `json:"connection"`
	Payload    PayloadRequest    `json:"payload"`
}

func (r *CleanRequest) toConnectionConfig() config.ConnectionConfig {
	port := r.Connection.Port
	if port == 0 {
		port = 1521
	}
	return config.ConnectionConfig{
		Host:     r.Connection.Host,
		Port:     port,
		Database: r.Connection.Database,
		Username: r.Connection.User,
		Password: r.Connection.Password,
	}
}

// CleanResponse is the API response for a finished run.
type CleanResponse struct {
	Schema               string                   `json:"schema"`
	Rounds               int                      `json:"rounds"`
	Dropped              int                      `json:"dropped"`
	RemainingObjectCount int                      `json:"remaining_object_count"`
	Remaining            []engine.RemainingObject `json:"remaining,omitempty"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
