package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	faceDetectPath     = "/api/v1/services/aigc/image2video/face-detect"
	videoSynthesisPath = "/api/v1/services/aigc/image2video/video-synthesis"
	taskPath           = "/api/v1/tasks/"
)

// ErrMissingAPIKey is raised at construction; running without a key is
// a configuration fault, not something to discover on the first call.
var ErrMissingAPIKey = errors.New("dashscope api key not configured")

// DashScope talks to the Aliyun DashScope image-to-video pipeline.
type DashScope struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewDashScope(baseURL, apiKey string) (*DashScope, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &DashScope{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}, nil
}

type dashScopeEnvelope struct {
	RequestID string          `json:"request_id"`
	Output    json.RawMessage `json:"output"`
}

type detectOutput struct {
	BBoxFace    []int  `json:"bbox_face"`
	ExtBBoxFace []int  `json:"ext_bbox_face"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

func (d *DashScope) Detect(ctx context.Context, imageURL string) (*DetectResult, error) {
	payload := map[string]interface{}{
		"model":      "emoji-detect-v1",
		"input":      map[string]string{"image_url": imageURL},
		"parameters": map[string]string{"ratio": "1:1"},
	}

	raw, err := d.post(ctx, faceDetectPath, payload, false)
	if err != nil {
		return nil, fmt.Errorf("dashscope detect: %w", err)
	}

	var env dashScopeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("dashscope detect: invalid response: %w", err)
	}
	var out detectOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, fmt.Errorf("dashscope detect: invalid output: %w", err)
	}

	if len(out.BBoxFace) > 0 && len(out.ExtBBoxFace) > 0 {
		return &DetectResult{
			Passed:   true,
			FaceBBox: out.BBoxFace,
			ExtBBox:  out.ExtBBoxFace,
			Raw:      raw,
		}, nil
	}
	if out.Code != "" || out.Message != "" {
		return &DetectResult{
			Passed:       false,
			ErrorCode:    out.Code,
			ErrorMessage: out.Message,
			Raw:          raw,
		}, nil
	}
	return nil, fmt.Errorf("dashscope detect: response carries neither bboxes nor an error")
}

type createOutput struct {
	TaskID     string `json:"task_id"`
	TaskStatus string `json:"task_status"`
}

func (d *DashScope) CreateTask(ctx context.Context, req CreateTaskRequest) (string, error) {
	payload := map[string]interface{}{
		"model": "emoji-v1",
		"input": map[string]interface{}{
			"image_url": req.ImageURL,
			"driven_id": req.DrivenID,
			"face_bbox": req.FaceBBox,
			"ext_bbox":  req.ExtBBox,
		},
	}

	raw, err := d.post(ctx, videoSynthesisPath, payload, true)
	if err != nil {
		return "", fmt.Errorf("dashscope create task: %w", err)
	}

	var env dashScopeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("dashscope create task: invalid response: %w", err)
	}
	var out createOutput
	if err := json.Unmarshal(env.Output, &out); err != nil || out.TaskID == "" {
		return "", fmt.Errorf("dashscope create task: response missing task_id")
	}
	return out.TaskID, nil
}

type taskOutput struct {
	TaskStatus string `json:"task_status"`
	VideoURL   string `json:"video_url"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Results    []struct {
		VideoURL string `json:"video_url"`
	} `json:"results"`
}

func (d *DashScope) GetTask(ctx context.Context, remoteTaskID string) (*TaskStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+taskPath+remoteTaskID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	raw, err := d.do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dashscope get task: %w", err)
	}

	var env dashScopeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("dashscope get task: invalid response: %w", err)
	}
	var out taskOutput
	if err := json.Unmarshal(env.Output, &out); err != nil {
		return nil, fmt.Errorf("dashscope get task: invalid output: %w", err)
	}

	videoURL := out.VideoURL
	if videoURL == "" && len(out.Results) > 0 {
		// Older responses nest the URL under results[0].
		videoURL = out.Results[0].VideoURL
	}

	return &TaskStatus{
		Status:       strings.ToUpper(out.TaskStatus),
		VideoURL:     videoURL,
		ErrorCode:    out.Code,
		ErrorMessage: out.Message,
	}, nil
}

func (d *DashScope) post(ctx context.Context, path string, payload interface{}, async bool) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if async {
		req.Header.Set("X-DashScope-Async", "enable")
	}

	return d.do(req)
}

func (d *DashScope) do(req *http.Request) ([]byte, error) {
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
