package handler

import (
	"time"

	"github.com/yndnr/svcreg-go/internal/core/domain"
)

// Response is the standard admin response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// DumpResponse is the body data of GET /debug/services.
type DumpResponse struct {
	Count     int                        `json:"count"`
	Instances []domain.InstanceDebugInfo `json:"instances"`
}

// StatsResponse is the body data of GET /debug/stats.
type StatsResponse struct {
	Interfaces        int `json:"interfaces"`
	Entries           int `json:"entries"`
	Live              int `json:"live"`
	PackageListeners  int `json:"package_listeners"`
	InstanceListeners int `json:"instance_listeners"`
	Tokens            int `json:"tokens"`
}

// StatusResponse is the body data of GET /debug/status.
type StatusResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
}
