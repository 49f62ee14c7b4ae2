package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOGVideoURL(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "og:video",
			html: `<html><head><meta property="og:video" content="https://cdn.example/v.mp4"></head></html>`,
			want: "https://cdn.example/v.mp4",
		},
		{
			name: "secure url only",
			html: `<html><head><meta property="og:video:secure_url" content="https://cdn.example/s.mp4"></head></html>`,
			want: "https://cdn.example/s.mp4",
		},
		{
			name: "og:video preferred over secure url",
			html: `<meta property="og:video:secure_url" content="https://b"><meta property="og:video" content="https://a">`,
			want: "https://a",
		},
		{
			name: "empty content skipped",
			html: `<meta property="og:video" content=""><meta property="og:video:secure_url" content="https://s">`,
			want: "https://s",
		},
		{
			name: "no video",
			html: `<html><head><meta property="og:image" content="https://cdn.example/i.jpg"></head></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OGVideoURL(tt.html)
			if err != nil {
				t.Fatalf("OGVideoURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("OGVideoURL = %q; want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client()}
	html, err := f.Fetch(context.Background(), srv.URL+"/p/abc/")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html != "<html>ok</html>" {
		t.Errorf("html = %q", html)
	}

	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error on 404")
	}
}
