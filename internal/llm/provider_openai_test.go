package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIGenerate(t *testing.T) {
	var captured openAIImageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, `{"data":[{"url":"https://cdn.example.com/out.png"}]}`)
	}))
	defer server.Close()

	provider, err := NewOpenAI("sk-test", server.URL, "dall-e-2", server.Client(), nil)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	payload, err := provider.Generate(context.Background(), "a cat", "https://example.com/ref.png")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !payload.IsRemote() || payload.URL != "https://cdn.example.com/out.png" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if captured.Prompt != "a cat (similar to the reference image)" {
		t.Fatalf("unexpected prompt %q", captured.Prompt)
	}
	if captured.N != 1 || captured.Size != "1024x1024" || captured.Model != "dall-e-2" {
		t.Fatalf("unexpected request %+v", captured)
	}
}

func TestOpenAIGenerateInlineImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer server.Close()

	provider, _ := NewOpenAI("sk-test", server.URL, "gpt-image-1", server.Client(), nil)
	payload, err := provider.Generate(context.Background(), "a cat", "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if payload.IsRemote() || string(payload.Data) != string(png) {
		t.Fatalf("expected inline data, got %+v", payload)
	}
	if payload.MimeType != "image/png" {
		t.Fatalf("expected image/png, got %s", payload.MimeType)
	}
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "upstream rejects",
			status:     http.StatusBadRequest,
			body:       `{"error":{"message":"content policy violation"}}`,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "content policy violation",
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `slow down`,
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    "slow down",
		},
		{
			name:       "malformed body",
			status:     http.StatusOK,
			body:       `not json`,
			wantStatus: http.StatusOK,
			wantMsg:    "malformed",
		},
		{
			name:       "no image",
			status:     http.StatusOK,
			body:       `{"data":[]}`,
			wantStatus: http.StatusOK,
			wantMsg:    "no image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			provider, _ := NewOpenAI("sk-test", server.URL, "", server.Client(), nil)
			_, err := provider.Generate(context.Background(), "a cat", "")

			var providerErr *ProviderError
			if !errors.As(err, &providerErr) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if providerErr.StatusCode != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, providerErr.StatusCode)
			}
			if tt.wantStatus < http.StatusBadRequest && providerErr.HTTPStatus() != http.StatusBadGateway {
				t.Fatalf("expected 502 for a failed ok response, got %d", providerErr.HTTPStatus())
			}
			if !strings.Contains(providerErr.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in %q", tt.wantMsg, providerErr.Error())
			}
		})
	}
}

func TestOpenAIEditSendsMultipart(t *testing.T) {
	source := []byte("\x89PNG\r\n\x1a\nsource")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/edits" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("prompt"); got != "make it blue" {
			t.Fatalf("unexpected prompt %q", got)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("missing image part: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != string(source) {
			t.Fatalf("unexpected image bytes")
		}
		if header.Filename != "image.png" {
			t.Fatalf("unexpected filename %q", header.Filename)
		}
		_, _ = io.WriteString(w, `{"data":[{"url":"https://cdn.example.com/edited.png"}]}`)
	}))
	defer server.Close()

	provider, _ := NewOpenAI("sk-test", server.URL, "", server.Client(), nil)
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(source)
	payload, err := provider.Edit(context.Background(), dataURL, "make it blue")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if payload.URL != "https://cdn.example.com/edited.png" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestOpenAIEditInvalidSource(t *testing.T) {
	provider, _ := NewOpenAI("sk-test", "http://127.0.0.1:0", "", http.DefaultClient, nil)
	_, err := provider.Edit(context.Background(), "   ", "make it blue")

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.HTTPStatus() != http.StatusBadGateway {
		t.Fatalf("expected fallback status 502, got %d", providerErr.HTTPStatus())
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(" ", "", "", nil, nil); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
