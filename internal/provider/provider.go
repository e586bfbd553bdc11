// Package provider wraps the remote image-to-video pipeline behind a
// three-operation interface: detect a face, create an asynchronous
// generation job, and poll the job's status. The worker treats the
// vendor as opaque beyond these calls.
package provider

import (
	"context"
	"encoding/json"
)

// DetectResult is the outcome of face detection on a source image. A
// task is only submittable when both bounding boxes are present, which
// the worker checks before creating a remote job.
type DetectResult struct {
	Passed       bool            `json:"passed"`
	FaceBBox     []int           `json:"face_bbox,omitempty"`
	ExtBBox      []int           `json:"ext_bbox,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

// Usable reports whether the detection carries the bounding boxes the
// synthesis call requires.
func (d *DetectResult) Usable() bool {
	return d != nil && len(d.FaceBBox) > 0 && len(d.ExtBBox) > 0
}

// CreateTaskRequest carries everything the remote pipeline needs to
// start a generation job.
type CreateTaskRequest struct {
	ImageURL string
	DrivenID string
	FaceBBox []int
	ExtBBox  []int
}

// Remote job states as reported by GetTask. Anything not listed here is
// treated as terminal failure by the worker.
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
)

// TaskStatus is a poll result for a remote job.
type TaskStatus struct {
	Status       string
	VideoURL     string
	ErrorCode    string
	ErrorMessage string
}

// Terminal reports whether polling can stop.
func (s *TaskStatus) Terminal() bool {
	switch s.Status {
	case StatusPending, StatusRunning:
		return false
	}
	return true
}

// Client is the remote pipeline. Implemented by the DashScope HTTP
// client and by Mock for development and tests; which one a process
// gets is decided at construction time, never inside a method.
type Client interface {
	Detect(ctx context.Context, imageURL string) (*DetectResult, error)
	CreateTask(ctx context.Context, req CreateTaskRequest) (string, error)
	GetTask(ctx context.Context, remoteTaskID string) (*TaskStatus, error)
}
