// Package collab holds thin HTTP clients for the external collaborators:
// the transcription pipeline and the analysis provider. Both are specified
// only at their interfaces; these clients post the pipeline's inputs to a
// configured endpoint and decode the collaborator's response.
package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pitch-pipeline/internal/pipeline"
)

// ErrNotConfigured is returned when a collaborator endpoint is unset. The
// machine records it as a section failure rather than an endpoint error.
var ErrNotConfigured = errors.New("collaborator endpoint is not configured")

func postJSON(ctx context.Context, client *http.Client, endpoint string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// HTTPTranscriber posts {videoUrl} to Endpoint and expects a Transcript.
type HTTPTranscriber struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPTranscriber returns a transcriber for endpoint, which may be empty
// (every call then fails with ErrNotConfigured).
func NewHTTPTranscriber(endpoint string) *HTTPTranscriber {
	return &HTTPTranscriber{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Transcribe implements pipeline.Transcriber.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, videoURL string) (*pipeline.Transcript, error) {
	if t.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	var out pipeline.Transcript
	in := map[string]string{"videoUrl": videoURL}
	if err := postJSON(ctx, t.Client, t.Endpoint, in, &out); err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	return &out, nil
}

// HTTPAnalyzer posts the aligned frame/segment pairs to Endpoint and expects
// an AnalysisResult.
type HTTPAnalyzer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPAnalyzer returns an analyzer for endpoint, which may be empty
// (every call then fails with ErrNotConfigured).
func NewHTTPAnalyzer(endpoint string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Analyze implements pipeline.Analyzer.
func (a *HTTPAnalyzer) Analyze(ctx context.Context, pairs []pipeline.AlignedPair) (*pipeline.AnalysisResult, error) {
	if a.Endpoint == "" {
		return nil, ErrNotConfigured
	}
	var out pipeline.AnalysisResult
	in := map[string]any{"pairs": pairs}
	if err := postJSON(ctx, a.Client, a.Endpoint, in, &out); err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}
	return &out, nil
}
