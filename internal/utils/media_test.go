package utils

import (
	"encoding/base64"
	"testing"
)

func TestDecodeMediaPayload(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	encoded := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name     string
		payload  string
		wantMime string
		wantErr  bool
	}{
		{name: "data url", payload: "data:image/png;base64," + encoded, wantMime: "image/png"},
		{name: "bare base64 is sniffed", payload: encoded, wantMime: "image/png"},
		{name: "unknown declared type is sniffed", payload: "data:application/octet-stream;base64," + encoded, wantMime: "image/png"},
		{name: "empty", payload: "  ", wantErr: true},
		{name: "empty body", payload: "data:image/png;base64,", wantErr: true},
		{name: "bad base64", payload: "data:image/png;base64,@@@", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mimeType, err := DecodeMediaPayload(tt.payload)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeMediaPayload: %v", err)
			}
			if mimeType != tt.wantMime || string(data) != string(png) {
				t.Fatalf("got mime %q data %q", mimeType, data)
			}
		})
	}
}

func TestExtensionFromMime(t *testing.T) {
	cases := map[string]string{
		"image/png":                "png",
		"image/jpeg":               "jpg",
		"image/webp; charset=utf8": "webp",
		"text/plain":               "",
		"":                         "",
	}
	for in, want := range cases {
		if got := ExtensionFromMime(in); got != want {
			t.Errorf("ExtensionFromMime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildDataURLRoundTrip(t *testing.T) {
	url := BuildDataURL("image/PNG", []byte("abc"))
	if url != "data:image/png;base64,YWJj" {
		t.Fatalf("unexpected data url %q", url)
	}
	mimeType, body := SplitDataURL(url)
	if mimeType != "image/png" || body != "YWJj" {
		t.Fatalf("unexpected split %q %q", mimeType, body)
	}
}
