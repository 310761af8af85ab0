package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientRenderHTMLPostsMultipartPage(t *testing.T) {
	var gotPart, gotPage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		gotPart, gotPage = readFilePart(t, r)
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer server.Close()

	client := NewClient(server.URL + "/")
	pdf, err := client.RenderHTML(context.Background(), "<html><body>ok</body></html>")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(pdf) != "%PDF-1.7" {
		t.Fatalf("unexpected pdf bytes: %q", pdf)
	}
	if gotPart != "index.html" {
		t.Fatalf("expected part index.html, got %q", gotPart)
	}
	if !strings.Contains(gotPage, "ok") {
		t.Fatalf("page body not forwarded: %q", gotPage)
	}
}

func TestClientRenderHTMLSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.RenderHTML(context.Background(), "<html></html>"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestClientPing(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	if err := NewClient(healthy.URL).Ping(context.Background()); err != nil {
		t.Fatalf("ping healthy: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	if err := NewClient(down.URL).Ping(context.Background()); err == nil {
		t.Fatal("expected error for unavailable renderer")
	}
}

func readFilePart(t *testing.T, r *http.Request) (name, body string) {
	t.Helper()
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	files := r.MultipartForm.File["files"]
	if len(files) != 1 {
		t.Fatalf("expected one file part, got %d", len(files))
	}
	f, err := files[0].Open()
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read part: %v", err)
	}
	return files[0].Filename, string(data)
}
