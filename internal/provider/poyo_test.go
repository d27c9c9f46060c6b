package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// poyoStub fakes the Poyo API for client tests.
func poyoStub(t *testing.T, handler http.HandlerFunc) *PoyoClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewPoyoClient(srv.URL, "test-key", 0)
}

func TestSubmit(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]json.RawMessage

	client := poyoStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"code":200,"success":true,"data":{"task_id":"abc-123"}}`))
	})

	taskID, err := client.Submit(context.Background(), "seedream-4.5", json.RawMessage(`{"prompt":"a fox"}`))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if taskID != "abc-123" {
		t.Errorf("task id: got %q", taskID)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth header: got %q", gotAuth)
	}
	if gotPath != "/api/generate/submit" {
		t.Errorf("path: got %q", gotPath)
	}
	if string(gotBody["model"]) != `"seedream-4.5"` {
		t.Errorf("model in body: got %s", gotBody["model"])
	}
}

func TestSubmitRejected(t *testing.T) {
	client := poyoStub(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":422,"success":false,"error":{"message":"model not available"}}`))
	})

	_, err := client.Submit(context.Background(), "x", json.RawMessage(`{}`))
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
	if perr.Message != "model not available" {
		t.Errorf("message: got %q", perr.Message)
	}
}

func TestPollStatus(t *testing.T) {
	cases := []struct {
		name      string
		body      string
		wantState string
		wantURL   string
		wantMsg   string
	}{
		{
			name:      "finished picks media file",
			body:      `{"code":200,"data":{"status":"finished","files":[{"file_type":"thumbnail","file_url":"https://p/t.jpg"},{"file_type":"video","file_url":"https://p/out.mp4"}]}}`,
			wantState: StateFinished,
			wantURL:   "https://p/out.mp4",
		},
		{
			name:      "finished falls back to first file",
			body:      `{"code":200,"data":{"status":"finished","files":[{"file_type":"archive","file_url":"https://p/out.zip"}]}}`,
			wantState: StateFinished,
			wantURL:   "https://p/out.zip",
		},
		{
			name:      "failed carries message",
			body:      `{"code":200,"data":{"status":"failed","error_message":"content rejected"}}`,
			wantState: StateFailed,
			wantMsg:   "content rejected",
		},
		{
			name:      "anything else is pending",
			body:      `{"code":200,"data":{"status":"rendering","progress":40}}`,
			wantState: StatePending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := poyoStub(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/generate/status/task-1" {
					t.Errorf("path: got %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(tc.body))
			})

			st, err := client.PollStatus(context.Background(), "task-1")
			if err != nil {
				t.Fatalf("PollStatus: %v", err)
			}
			if st.State != tc.wantState {
				t.Errorf("state: got %q, want %q", st.State, tc.wantState)
			}
			if st.OutputURL != tc.wantURL {
				t.Errorf("output url: got %q, want %q", st.OutputURL, tc.wantURL)
			}
			if st.ErrorMessage != tc.wantMsg {
				t.Errorf("error message: got %q, want %q", st.ErrorMessage, tc.wantMsg)
			}
		})
	}
}

func TestUploadReferenceAsset(t *testing.T) {
	client := poyoStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/common/upload/url" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"code":200,"success":true,"data":{"file_url":"https://poyo.internal/up/1.png"}}`))
	})

	url, err := client.UploadReferenceAsset(context.Background(), "https://example.com/ref.png")
	if err != nil {
		t.Fatalf("UploadReferenceAsset: %v", err)
	}
	if url != "https://poyo.internal/up/1.png" {
		t.Errorf("url: got %q", url)
	}
}

func TestMalformedResponse(t *testing.T) {
	client := poyoStub(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>upstream error</html>"))
	})

	_, err := client.PollStatus(context.Background(), "task-1")
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got: %v", err)
	}
}
