package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func newPostServer(t *testing.T, body func(base string) string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/p/ABC123/":
			if r.URL.Query().Get("__a") != "1" {
				t.Errorf("missing __a query: %s", r.URL.RawQuery)
			}
			if r.Header.Get("X-IG-App-ID") != appID {
				t.Errorf("X-IG-App-ID = %q", r.Header.Get("X-IG-App-ID"))
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body(srv.URL))
		case r.URL.Path == "/media/v1":
			w.Write(make([]byte, 800))
		case r.URL.Path == "/media/i1", r.URL.Path == "/media/i2":
			w.Write(make([]byte, 200))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPostItemsCarousel(t *testing.T) {
	srv := newPostServer(t, func(base string) string {
		return `{"items":[{"media_type":8,"carousel_media":[
			{"media_type":2,"video_versions":[{"url":"` + base + `/media/v1","width":720,"height":1280}],
			 "image_versions2":{"candidates":[{"url":"` + base + `/media/i1","width":720,"height":1280},{"url":"` + base + `/media/small","width":10,"height":10}]}},
			{"media_type":1,"image_versions2":{"candidates":[{"url":"` + base + `/media/i2","width":1080,"height":1080}]}}
		]}]}`
	})

	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "ABC123")
	files, err := c.FetchPost(context.Background(), "ABC123", dir)
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)
	want := []string{"ABC123_1.jpg", "ABC123_1.mp4", "ABC123_2.jpg"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("files = %v; want %v", names, want)
	}

	info, err := os.Stat(filepath.Join(dir, "ABC123_1.mp4"))
	if err != nil || info.Size() != 800 {
		t.Errorf("video not written correctly: %v", err)
	}
}

func TestFetchPostGraphQL(t *testing.T) {
	srv := newPostServer(t, func(base string) string {
		return `{"graphql":{"shortcode_media":{"is_video":true,"video_url":"` + base + `/media/v1","display_url":"` + base + `/media/i1"}}}`
	})

	c, _ := New(Options{BaseURL: srv.URL})
	files, err := c.FetchPost(context.Background(), "ABC123", filepath.Join(t.TempDir(), "ABC123"))
	if err != nil {
		t.Fatalf("FetchPost: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %d files; want 2", len(files))
	}
}

func TestFetchPostUnknownShape(t *testing.T) {
	srv := newPostServer(t, func(string) string { return `{"require_login":true}` })

	c, _ := New(Options{BaseURL: srv.URL})
	dir := filepath.Join(t.TempDir(), "ABC123")
	if _, err := c.FetchPost(context.Background(), "ABC123", dir); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("post dir should not be created when the post cannot be parsed")
	}
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/login/":
			http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok", Path: "/"})
		case "/api/v1/web/accounts/login/ajax/":
			if r.Header.Get("X-CSRFToken") != "tok" {
				t.Errorf("X-CSRFToken = %q", r.Header.Get("X-CSRFToken"))
			}
			r.ParseForm()
			if r.Form.Get("username") != "alice" {
				w.Write([]byte(`{"authenticated":false,"status":"ok"}`))
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "sess", Path: "/"})
			w.Write([]byte(`{"authenticated":true,"user":true,"status":"ok"}`))
		}
	}))
	defer srv.Close()

	c, _ := New(Options{BaseURL: srv.URL, Username: "alice", Password: "pw"})
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !c.Authenticated() {
		t.Error("client should be authenticated")
	}

	path := filepath.Join(t.TempDir(), "cookies.txt")
	n, err := c.ExportCookies(path)
	if err != nil {
		t.Fatalf("ExportCookies: %v", err)
	}
	if n != 2 {
		t.Errorf("exported %d cookies; want 2", n)
	}

	bad, _ := New(Options{BaseURL: srv.URL, Username: "bob", Password: "pw"})
	if err := bad.Authenticate(context.Background()); err == nil {
		t.Error("expected login failure for bob")
	}
}

func TestSessionFile(t *testing.T) {
	dir := t.TempDir()
	session := filepath.Join(dir, "session.txt")
	content := "# Netscape HTTP Cookie File\n" +
		".instagram.com\tTRUE\t/\tTRUE\t0\tsessionid\tabc\n" +
		"#HttpOnly_.instagram.com\tTRUE\t/\tTRUE\t0\tds_user_id\t42\n"
	if err := os.WriteFile(session, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	c, _ := New(Options{SessionFile: session, Username: "alice"})
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !c.Authenticated() {
		t.Fatal("session should be loaded")
	}

	d := Diagnose(session)
	if !d.SessionExists || !d.Loaded {
		t.Errorf("diagnosis = %+v", d)
	}
	if fmt.Sprint(d.Cookies) != "[ds_user_id sessionid]" {
		t.Errorf("cookies = %v", d.Cookies)
	}

	missing := Diagnose(filepath.Join(dir, "nope"))
	if missing.SessionExists || missing.Loaded {
		t.Errorf("missing file diagnosis = %+v", missing)
	}
}

func TestSessionFileWithoutSessionID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	os.WriteFile(path, []byte(".instagram.com\tTRUE\t/\tTRUE\t0\tcsrftoken\tx\n"), 0600)

	c, _ := New(Options{})
	if err := c.LoadSessionFile(path); err != ErrNotAuthenticated {
		t.Errorf("LoadSessionFile = %v; want ErrNotAuthenticated", err)
	}
}
