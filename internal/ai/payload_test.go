package ai

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000IHDR")

func TestPayloadDecoder_Decode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	encoded := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name         string
		payload      string
		index        int
		expectData   string
		expectType   string
		expectName   string
		expectErrMsg bool
	}{
		{
			name:       "base64 data URI",
			payload:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
			index:      0,
			expectData: "jpeg-bytes",
			expectType: "image/jpeg",
			expectName: "snapshot-0000.jpg",
		},
		{
			name:       "bare base64 is sniffed",
			payload:    encoded,
			index:      7,
			expectData: string(pngHeader),
			expectType: "image/png",
			expectName: "snapshot-0007.png",
		},
		{
			name:       "http URL",
			payload:    server.URL + "/frame.jpg",
			index:      12,
			expectData: "jpeg-bytes",
			expectType: "image/jpeg",
			expectName: "snapshot-0012.jpg",
		},
		{
			name:         "http URL not found",
			payload:      server.URL + "/missing.jpg",
			expectErrMsg: true,
		},
		{
			name:         "empty payload",
			payload:      "   ",
			expectErrMsg: true,
		},
		{
			name:         "data URI without comma",
			payload:      "data:image/png;base64",
			expectErrMsg: true,
		},
		{
			name:         "garbage",
			payload:      "!!not base64!!",
			expectErrMsg: true,
		},
	}

	decoder := NewPayloadDecoder(strings.TrimPrefix(server.URL, "http://"))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := decoder.Decode(context.Background(), tt.payload, tt.index)
			if tt.expectErrMsg {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(img.Data) != tt.expectData {
				t.Errorf("expected data %q, got %q", tt.expectData, img.Data)
			}
			if img.ContentType != tt.expectType {
				t.Errorf("expected content type %s, got %s", tt.expectType, img.ContentType)
			}
			if img.Filename != tt.expectName {
				t.Errorf("expected filename %s, got %s", tt.expectName, img.Filename)
			}
		})
	}
}

func TestPayloadDecoder_RejectsURLsByDefault(t *testing.T) {
	var hits int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("instance-id: i-0123456789"))
	}))
	defer internal.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/latest/meta-data", http.StatusFound)
	}))
	defer redirector.Close()

	tests := []struct {
		name    string
		decoder *PayloadDecoder
		payload string
	}{
		{"no allowlist", NewPayloadDecoder(), internal.URL + "/latest/meta-data"},
		{"https without allowlist", NewPayloadDecoder(), "https://169.254.169.254/latest/meta-data"},
		{"host not on allowlist", NewPayloadDecoder("images.example.com"), internal.URL + "/latest/meta-data"},
		{"redirect off the allowlist", NewPayloadDecoder(strings.TrimPrefix(redirector.URL, "http://")), redirector.URL + "/frame.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.decoder.Decode(context.Background(), tt.payload, 0); err == nil {
				t.Error("expected URL payload to be rejected")
			}
		})
	}

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("expected no request to reach the internal server, got %d", n)
	}
}

func TestParseSnapshotFilename(t *testing.T) {
	tests := []struct {
		filename    string
		expectIndex int
		expectOK    bool
	}{
		{"snapshot-0003.jpg", 3, true},
		{"uploads/snapshot-0120.png", 120, true},
		{"snapshot-0000", 0, true},
		{"david_hume.jpeg", 0, false},
		{"snapshot-.jpg", 0, false},
		{"snapshot-abc.jpg", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		index, ok := ParseSnapshotFilename(tt.filename)
		if ok != tt.expectOK || index != tt.expectIndex {
			t.Errorf("ParseSnapshotFilename(%q) = (%d, %v), expected (%d, %v)", tt.filename, index, ok, tt.expectIndex, tt.expectOK)
		}
	}
}
