package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"pitch-pipeline/internal/pipeline"
)

func testCreds() Credentials {
	return Credentials{TokenID: "token-id", TokenSecret: "token-secret"}
}

func TestCredentials_configured(t *testing.T) {
	if (Credentials{}).Configured() {
		t.Error("empty pair must not be configured")
	}
	if (Credentials{TokenID: "a"}).Configured() {
		t.Error("half a pair must not be configured")
	}
	if !testCreds().Configured() {
		t.Error("full pair must be configured")
	}
}

func TestCreateUpload_sends_encoded_authorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"up-1","url":"https://slot.example.com/up-1"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(), quietLogger())
	slot, err := c.CreateUpload(context.Background())
	if err != nil {
		t.Fatalf("CreateUpload: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("token-id:token-secret"))
	if gotAuth != want {
		t.Errorf("authorization %q, want %q", gotAuth, want)
	}
	if slot.ID != "up-1" || slot.URL != "https://slot.example.com/up-1" {
		t.Errorf("unexpected slot: %+v", slot)
	}
}

func TestCreateUpload_missing_credentials_no_network(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := NewClient(srv.URL, Credentials{}, quietLogger())
	_, err := c.CreateUpload(context.Background())
	if !errors.Is(err, pipeline.ErrMissingCredentials) {
		t.Errorf("got %v, want ErrMissingCredentials", err)
	}
	if calls != 0 {
		t.Errorf("missing credentials must fail before any network call, got %d", calls)
	}
}

func TestCreateUpload_rejects_error_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(), quietLogger())
	if _, err := c.CreateUpload(context.Background()); err == nil {
		t.Error("expected error on 401")
	}
}

func TestGetUpload_and_GetAsset_parse_records(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video/v1/uploads/up-1":
			io.WriteString(w, `{"data":{"status":"asset_created","asset_id":"asset-3"}}`)
		case "/video/v1/assets/asset-3":
			io.WriteString(w, `{"data":{"status":"ready","playback_ids":[{"id":"pb-5"},{"id":"pb-6"}]}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testCreds(), quietLogger())

	up, err := c.GetUpload(context.Background(), "up-1")
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if up.AssetID != "asset-3" {
		t.Errorf("asset id %q, want asset-3", up.AssetID)
	}

	asset, err := c.GetAsset(context.Background(), "asset-3")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if len(asset.PlaybackIDs) != 2 || asset.PlaybackIDs[0] != "pb-5" {
		t.Errorf("unexpected playback ids: %v", asset.PlaybackIDs)
	}
}

func TestTransferContent_streams_source_to_slot(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "video-bytes")
	}))
	defer source.Close()

	var received string
	slot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b, _ := io.ReadAll(r.Body)
		received = string(b)
	}))
	defer slot.Close()

	c := NewClient("https://api.example.com", testCreds(), quietLogger())
	if err := c.TransferContent(context.Background(), slot.URL, source.URL); err != nil {
		t.Fatalf("TransferContent: %v", err)
	}
	if received != "video-bytes" {
		t.Errorf("slot received %q, want video-bytes", received)
	}
}

func TestTransferContent_unreachable_source(t *testing.T) {
	c := NewClient("https://api.example.com", testCreds(), quietLogger())
	err := c.TransferContent(context.Background(), "https://slot.example.com/x", "http://127.0.0.1:1/missing.mp4")
	if err == nil {
		t.Error("expected error for unreachable source")
	}
}
