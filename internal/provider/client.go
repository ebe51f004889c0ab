// Package provider talks to the remote transcoding provider and resolves
// uploaded videos into durable playback identifiers.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pitch-pipeline/internal/pipeline"
)

// DefaultAPIBase is the provider's REST API origin.
const DefaultAPIBase = "https://api.mux.com"

// Credentials is the static credential pair sent as a single encoded
// authorization value on every request.
type Credentials struct {
	TokenID     string
	TokenSecret string
}

// Configured reports whether both halves of the pair are present.
func (c Credentials) Configured() bool {
	return c.TokenID != "" && c.TokenSecret != ""
}

func (c Credentials) authorization() string {
	raw := c.TokenID + ":" + c.TokenSecret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// UploadSlot is a transcodable upload acknowledged by the provider.
type UploadSlot struct {
	ID  string
	URL string
}

// UploadRecord is the provider's view of an upload in progress.
type UploadRecord struct {
	Status  string
	AssetID string
}

// AssetRecord is the provider's view of a transcoded asset.
type AssetRecord struct {
	Status      string
	PlaybackIDs []string
}

// API is the subset of the provider's REST surface the resolver needs.
// Satisfied by *Client; fakes implement it in tests.
type API interface {
	CreateUpload(ctx context.Context) (*UploadSlot, error)
	TransferContent(ctx context.Context, slotURL, videoURL string) error
	GetUpload(ctx context.Context, id string) (*UploadRecord, error)
	GetAsset(ctx context.Context, assetID string) (*AssetRecord, error)
}

// Client is a thin typed client for the provider's REST API.
type Client struct {
	apiBase string
	creds   Credentials
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a Client for apiBase using creds. An empty apiBase uses
// DefaultAPIBase.
func NewClient(apiBase string, creds Credentials, log *slog.Logger) *Client {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		apiBase: apiBase,
		creds:   creds,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// CreateUpload requests a transcodable upload slot. Missing credentials fail
// before any network call.
func (c *Client) CreateUpload(ctx context.Context) (*UploadSlot, error) {
	if !c.creds.Configured() {
		return nil, pipeline.ErrMissingCredentials
	}

	body := map[string]any{
		"new_asset_settings": map[string]any{
			"playback_policy": []string{"public"},
		},
		"cors_origin": "*",
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding upload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/video/v1/uploads", bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", c.creds.authorization())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating upload slot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("creating upload slot: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Data struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding upload slot: %w", err)
	}
	if out.Data.ID == "" || out.Data.URL == "" {
		return nil, fmt.Errorf("creating upload slot: incomplete response")
	}
	return &UploadSlot{ID: out.Data.ID, URL: out.Data.URL}, nil
}

// TransferContent streams the video bytes from videoURL into the upload slot.
func (c *Client) TransferContent(ctx context.Context, slotURL, videoURL string) error {
	src, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("building source request: %w", err)
	}
	srcResp, err := c.http.Do(src)
	if err != nil {
		return fmt.Errorf("fetching source video: %w", err)
	}
	defer srcResp.Body.Close()
	if srcResp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching source video: unexpected status %d", srcResp.StatusCode)
	}

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, slotURL, srcResp.Body)
	if err != nil {
		return fmt.Errorf("building transfer request: %w", err)
	}
	if srcResp.ContentLength > 0 {
		put.ContentLength = srcResp.ContentLength
	}

	putResp, err := c.http.Do(put)
	if err != nil {
		return fmt.Errorf("transferring content: %w", err)
	}
	defer putResp.Body.Close()
	io.Copy(io.Discard, putResp.Body)
	if putResp.StatusCode < 200 || putResp.StatusCode >= 300 {
		return fmt.Errorf("transferring content: unexpected status %d", putResp.StatusCode)
	}
	return nil
}

// GetUpload fetches the current state of an upload.
func (c *Client) GetUpload(ctx context.Context, id string) (*UploadRecord, error) {
	var out struct {
		Data struct {
			Status  string `json:"status"`
			AssetID string `json:"asset_id"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/video/v1/uploads/"+id, &out); err != nil {
		return nil, err
	}
	return &UploadRecord{Status: out.Data.Status, AssetID: out.Data.AssetID}, nil
}

// GetAsset fetches the current state of a transcoded asset.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*AssetRecord, error) {
	var out struct {
		Data struct {
			Status      string `json:"status"`
			PlaybackIDs []struct {
				ID string `json:"id"`
			} `json:"playback_ids"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, "/video/v1/assets/"+assetID, &out); err != nil {
		return nil, err
	}
	rec := &AssetRecord{Status: out.Data.Status}
	for _, p := range out.Data.PlaybackIDs {
		rec.PlaybackIDs = append(rec.PlaybackIDs, p.ID)
	}
	return rec, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", c.creds.authorization())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
