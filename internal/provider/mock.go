package provider

import "context"

// Mock satisfies Client without calling out. Used in local development
// so the pipeline can be exercised without a DashScope account.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Detect(_ context.Context, _ string) (*DetectResult, error) {
	return &DetectResult{
		Passed:   true,
		FaceBBox: []int{0, 0, 100, 100},
		ExtBBox:  []int{0, 0, 120, 120},
	}, nil
}

func (m *Mock) CreateTask(_ context.Context, _ CreateTaskRequest) (string, error) {
	return "mock_task", nil
}

func (m *Mock) GetTask(_ context.Context, _ string) (*TaskStatus, error) {
	return &TaskStatus{
		Status:   StatusSucceeded,
		VideoURL: "https://example.com/mock-result.mp4",
	}, nil
}
