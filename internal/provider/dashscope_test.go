package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *DashScope) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewDashScope(srv.URL, "test-key")
	require.NoError(t, err)
	return srv, client
}

func TestNewDashScopeRequiresKey(t *testing.T) {
	_, err := NewDashScope("https://dashscope.aliyuncs.com", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestDetectPassed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, faceDetectPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"request_id":"r1","output":{"bbox_face":[10,20,110,120],"ext_bbox_face":[0,0,200,200]}}`))
	})

	res, err := client.Detect(context.Background(), "https://img.example.com/a.jpg")
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.True(t, res.Usable())
	assert.Equal(t, []int{10, 20, 110, 120}, res.FaceBBox)
}

func TestDetectRejected(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r2","output":{"code":"InvalidFile.NoFace","message":"no face detected"}}`))
	})

	res, err := client.Detect(context.Background(), "https://img.example.com/b.jpg")
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.False(t, res.Usable())
	assert.Equal(t, "InvalidFile.NoFace", res.ErrorCode)
}

func TestCreateTask(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, videoSynthesisPath, r.URL.Path)
		assert.Equal(t, "enable", r.Header.Get("X-DashScope-Async"))
		w.Write([]byte(`{"request_id":"r3","output":{"task_id":"task-abc","task_status":"PENDING"}}`))
	})

	id, err := client.CreateTask(context.Background(), CreateTaskRequest{
		ImageURL: "https://img.example.com/a.jpg",
		DrivenID: "mengwa_kaixin",
		FaceBBox: []int{10, 20, 110, 120},
		ExtBBox:  []int{0, 0, 200, 200},
	})
	require.NoError(t, err)
	assert.Equal(t, "task-abc", id)
}

func TestCreateTaskMissingID(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r4","output":{}}`))
	})

	_, err := client.CreateTask(context.Background(), CreateTaskRequest{})
	assert.ErrorContains(t, err, "missing task_id")
}

func TestGetTaskLegacyResultURL(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, taskPath+"task-abc", r.URL.Path)
		w.Write([]byte(`{"request_id":"r5","output":{"task_status":"SUCCEEDED","results":[{"video_url":"https://cdn.example.com/v.mp4"}]}}`))
	})

	st, err := client.GetTask(context.Background(), "task-abc")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.True(t, st.Terminal())
	assert.Equal(t, "https://cdn.example.com/v.mp4", st.VideoURL)
}

func TestGetTaskFailed(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r6","output":{"task_status":"FAILED","code":"InternalError","message":"synthesis failed"}}`))
	})

	st, err := client.GetTask(context.Background(), "task-abc")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, st.Status)
	assert.True(t, st.Terminal())
	assert.Equal(t, "InternalError", st.ErrorCode)
}

func TestHTTPErrorSurfaces(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"Throttling"}`, http.StatusTooManyRequests)
	})

	_, err := client.Detect(context.Background(), "https://img.example.com/a.jpg")
	assert.ErrorContains(t, err, "429")
}

func TestMockPipeline(t *testing.T) {
	client, err := New(true, "", "")
	require.NoError(t, err)

	res, err := client.Detect(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, res.Usable())

	id, err := client.CreateTask(context.Background(), CreateTaskRequest{})
	require.NoError(t, err)
	assert.Equal(t, "mock_task", id)

	st, err := client.GetTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, st.Status)
	assert.NotEmpty(t, st.VideoURL)
}
