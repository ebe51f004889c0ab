package collab

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"pitch-pipeline/internal/pipeline"
)

func TestHTTPTranscriber_posts_video_url(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"fullTranscript":"hi","segments":[{"text":"hi","startTime":0,"endTime":2,"confidence":0.9}],"cost":0.006}`)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL)
	out, err := tr.Transcribe(context.Background(), "https://blob.example.com/v.mp4")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got["videoUrl"] != "https://blob.example.com/v.mp4" {
		t.Errorf("posted %v, want videoUrl field", got)
	}
	if out.FullTranscript != "hi" || len(out.Segments) != 1 {
		t.Errorf("unexpected transcript: %+v", out)
	}
}

func TestHTTPTranscriber_not_configured(t *testing.T) {
	tr := NewHTTPTranscriber("")
	if _, err := tr.Transcribe(context.Background(), "https://x/v.mp4"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestHTTPAnalyzer_posts_pairs(t *testing.T) {
	var got struct {
		Pairs []pipeline.AlignedPair `json:"pairs"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, `{"summary":"good","scores":{"clarity":7},"cost":0.04}`)
	}))
	defer srv.Close()

	an := NewHTTPAnalyzer(srv.URL)
	pairs := []pipeline.AlignedPair{{Frame: pipeline.FrameDescriptor{TimestampSeconds: 5, Label: "00m05s"}}}
	out, err := an.Analyze(context.Background(), pairs)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.Pairs) != 1 || got.Pairs[0].Frame.TimestampSeconds != 5 {
		t.Errorf("pairs not posted: %+v", got.Pairs)
	}
	if out.Summary != "good" {
		t.Errorf("unexpected result: %+v", out)
	}
}

func TestHTTPAnalyzer_error_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	an := NewHTTPAnalyzer(srv.URL)
	if _, err := an.Analyze(context.Background(), nil); err == nil {
		t.Error("expected error on 502")
	}
}
