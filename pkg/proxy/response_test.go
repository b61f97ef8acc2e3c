package proxy

import (
	"errors"
	"net/http"
	"testing"
)

func TestPatchThreadID(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		want        string
		wantChanged bool
		wantErr     bool
	}{
		{
			name:        "top level",
			body:        `{"thread_id":"t_987","text":"hi"}`,
			want:        `{"thread_id":"conv-42","text":"hi"}`,
			wantChanged: true,
		},
		{
			name:        "nested and in arrays",
			body:        `{"data":[{"thread_id":"t_987","n":1},{"thread_id":"other"}],"meta":{"run":{"thread_id":"t_987"}}}`,
			want:        `{"data":[{"thread_id":"conv-42","n":1},{"thread_id":"other"}],"meta":{"run":{"thread_id":"conv-42"}}}`,
			wantChanged: true,
		},
		{
			name:        "numbers and literals preserved",
			body:        `{"thread_id":"t_987","big":12345678901234567890,"f":1.50,"ok":true,"none":null}`,
			want:        `{"thread_id":"conv-42","big":12345678901234567890,"f":1.50,"ok":true,"none":null}`,
			wantChanged: true,
		},
		{
			name:        "html is not escaped",
			body:        `{"thread_id":"t_987","html":"<b>&</b>"}`,
			want:        `{"thread_id":"conv-42","html":"<b>&</b>"}`,
			wantChanged: true,
		},
		{
			name: "other keys with the id are untouched",
			body: `{"id":"t_987", "text": "t_987"}`,
			want: `{"id":"t_987", "text": "t_987"}`,
		},
		{
			name: "non-string thread_id",
			body: `{"thread_id": 42}`,
			want: `{"thread_id": 42}`,
		},
		{
			name: "top level array without match keeps formatting",
			body: "[1, 2,\n 3]",
			want: "[1, 2,\n 3]",
		},
		{
			name:    "invalid json",
			body:    `{"thread_id":`,
			want:    `{"thread_id":`,
			wantErr: true,
		},
		{
			name:    "trailing data",
			body:    `{"thread_id":"t_987"} {}`,
			want:    `{"thread_id":"t_987"} {}`,
			wantErr: true,
		},
		{
			name:    "empty",
			body:    ``,
			want:    ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := PatchThreadID([]byte(tt.body), "t_987", "conv-42")

			if tt.wantErr {
				var patchErr *PatchError
				if !errors.As(err, &patchErr) {
					t.Fatalf("expected *PatchError, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("PatchThreadID: %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if string(got) != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestPatchable(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		encoding    string
		want        bool
	}{
		{"json", "application/json", "", true},
		{"json charset", "application/json; charset=utf-8", "", true},
		{"identity", "application/json", "identity", true},
		{"gzip", "application/json", "gzip", false},
		{"event stream", "text/event-stream", "", false},
		{"plain", "text/plain", "", false},
		{"missing", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.contentType != "" {
				h.Set("Content-Type", tt.contentType)
			}
			if tt.encoding != "" {
				h.Set("Content-Encoding", tt.encoding)
			}
			if got := patchable(h); got != tt.want {
				t.Errorf("patchable() = %v, want %v", got, tt.want)
			}
		})
	}
}
