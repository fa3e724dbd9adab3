package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/crosspost/internal/models"
	"github.com/desertthunder/crosspost/internal/platforms"
	"github.com/desertthunder/crosspost/internal/repositories"
	"github.com/desertthunder/crosspost/internal/services"
	"github.com/desertthunder/crosspost/internal/shared"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>My DEV feed</title>
  <item>
    <title>Hello World</title>
    <link>https://dev.to/me/hello-world</link>
    <guid>dev-1</guid>
    <pubDate>Tue, 05 Mar 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Second Post</title>
    <link>https://dev.to/me/second</link>
  </item>
  <item>
    <title>No identity</title>
  </item>
</channel>
</rss>`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, ":memory:", 0, 0)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRegistry(t *testing.T, feedURL string) *platforms.Registry {
	t.Helper()
	r, err := platforms.New(
		platforms.Platform{ID: platforms.SelfID, Label: "Postificus", Self: true},
		platforms.Platform{ID: "devto", Label: "DEV", Endpoint: "/api/publish/devto", FeedURL: feedURL, Sync: true},
		platforms.Platform{ID: "medium", Label: "Medium", Endpoint: "/api/publish/medium", Sync: true},
		platforms.Platform{ID: "linkedin", Label: "LinkedIn", Endpoint: "/api/publish/linkedin"},
	)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return r
}

func newTestBackend(t *testing.T, feedURL string, opts ...Option) (*Backend, *httptest.Server, *services.APIService) {
	t.Helper()
	backend := NewBackend(setupTestDB(t), testRegistry(t, feedURL), opts...)
	srv := httptest.NewServer(backend.Router())
	t.Cleanup(func() {
		srv.Close()
		backend.Close()
	})
	return backend, srv, services.NewAPIService(srv.URL, srv.Client())
}

func TestBasicRouter(t *testing.T) {
	router := NewBasicRouter()
	var order []string
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "outer")
			next.ServeHTTP(w, r)
		})
	}, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "inner")
			next.ServeHTTP(w, r)
		})
	})
	router.HandleFunc("GET", "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "get "+r.PathValue("id"))
	})
	router.HandleFunc("PUT", "/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "put "+r.PathValue("id"))
	})

	tests := []struct {
		name       string
		method     string
		wantStatus int
		wantBody   string
	}{
		{"GET dispatches", http.MethodGet, http.StatusOK, "get 7"},
		{"PUT dispatches", http.MethodPut, http.StatusOK, "put 7"},
		{"HEAD falls back to GET", http.MethodHead, http.StatusOK, ""},
		{"DELETE not allowed", http.MethodDelete, http.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order = nil
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, "/items/7", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.method != http.MethodHead && strings.TrimSpace(rec.Body.String()) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
			if len(order) != 2 || order[0] != "outer" {
				t.Errorf("middleware order wrong: %v", order)
			}
		})
	}

	t.Run("Allow header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/1", nil))
		if got := rec.Header().Get("Allow"); got != "GET, PUT" {
			t.Errorf("expected Allow %q, got %q", "GET, PUT", got)
		}
	})
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("BearerAuth", func(t *testing.T) {
		h := BearerAuth("secret")(ok)
		tests := []struct {
			header string
			want   int
		}{
			{"", http.StatusUnauthorized},
			{"Bearer wrong", http.StatusUnauthorized},
			{"secret", http.StatusUnauthorized},
			{"Bearer secret", http.StatusNoContent},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("header %q: expected %d, got %d", tt.header, tt.want, rec.Code)
			}
		}
	})

	t.Run("BearerAuth disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		BearerAuth("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected passthrough, got %d", rec.Code)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
		rec := httptest.NewRecorder()
		Recoverer(nil)(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestDraftEndpoints(t *testing.T) {
	ctx := context.Background()
	_, srv, api := newTestBackend(t, "")
	drafts := services.NewDraftAPI(api)

	t.Run("missing draft", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/drafts/nope")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
		var body map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body["error"] != "Draft not found" {
			t.Errorf("unexpected error body: %v", body)
		}

		if _, err := drafts.GetDraft(ctx, "nope"); !errors.Is(err, shared.ErrDraftNotFound) {
			t.Errorf("client should map 404 to ErrDraftNotFound, got %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		snap := models.DraftSnapshot{
			Title:   "Launch notes",
			Body:    "<p>hi</p>",
			Tags:    models.Tags{"go"},
			Targets: models.NewTargetSet("medium", "devto"),
		}
		if err := drafts.PutDraft(ctx, "d1", snap); err != nil {
			t.Fatalf("PutDraft failed: %v", err)
		}

		got, err := drafts.GetDraft(ctx, "d1")
		if err != nil {
			t.Fatalf("GetDraft failed: %v", err)
		}
		if !got.Equal(snap) {
			t.Errorf("snapshot mismatch: got %+v, want %+v", got, snap)
		}

		record, err := drafts.GetRecord(ctx, "d1")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if !record.LastSavedAt.Valid() {
			t.Error("expected last_saved_at to be set")
		}
	})

	t.Run("bad body", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/drafts/d2", strings.NewReader("{"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestDraftMirroredIntoActivity(t *testing.T) {
	ctx := context.Background()
	_, _, api := newTestBackend(t, "")
	drafts := services.NewDraftAPI(api)
	activity := services.NewActivityAPI(api)

	if err := drafts.PutDraft(ctx, "untitled", models.DraftSnapshot{Body: "x"}); err != nil {
		t.Fatalf("PutDraft failed: %v", err)
	}
	if err := drafts.PutDraft(ctx, "d1", models.DraftSnapshot{Title: "Mine", Targets: models.NewTargetSet("devto")}); err != nil {
		t.Fatalf("PutDraft failed: %v", err)
	}

	posts, err := activity.Activity(ctx, 0)
	if err != nil {
		t.Fatalf("Activity failed: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected only the titled draft to be mirrored, got %d", len(posts))
	}
	p := posts[0]
	if p.Platform != string(platforms.SelfID) || p.RemoteID != "d1" || p.Status != "draft" {
		t.Errorf("unexpected mirrored row: %+v", p)
	}
	if len(p.PublishTargets) != 1 || p.PublishTargets[0] != "devto" {
		t.Errorf("expected draft targets on self row, got %v", p.PublishTargets)
	}
}

func TestPublishEndpoint(t *testing.T) {
	ctx := context.Background()
	hook := func(_ context.Context, p platforms.Platform, _ services.PublishPayload) error {
		if p.ID == "linkedin" {
			return errors.New("token expired")
		}
		return nil
	}
	_, srv, api := newTestBackend(t, "", WithPublishHook(hook))
	publisher := services.NewPublishAPI(api)

	t.Run("accepted", func(t *testing.T) {
		body := `{"title":"Hello","content":"<p>x</p>"}`
		resp, err := http.Post(srv.URL+"/api/publish/medium", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", resp.StatusCode)
		}
		var out publishResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		if out.Status != "queued" || !strings.Contains(out.Message, "Medium") {
			t.Errorf("unexpected response: %+v", out)
		}
	})

	tests := []struct {
		name       string
		endpoint   string
		payload    services.PublishPayload
		wantStatus int
		wantReason string
	}{
		{"unknown platform", "/api/publish/myspace", services.PublishPayload{Title: "x"}, http.StatusNotFound, "Unknown platform: myspace"},
		{"self channel", "/api/publish/postificus", services.PublishPayload{Title: "x"}, http.StatusNotFound, "Unknown platform: postificus"},
		{"missing title", "/api/publish/devto", services.PublishPayload{Content: "x"}, http.StatusBadRequest, "Title is required"},
		{"hook failure", "/api/publish/linkedin", services.PublishPayload{Title: "x"}, http.StatusBadGateway, "token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := publisher.Publish(ctx, tt.endpoint, tt.payload)
			var se *services.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, se.StatusCode)
			}
			if se.Reason() != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, se.Reason())
			}
		})
	}

	t.Run("recorded as queued post", func(t *testing.T) {
		posts, err := services.NewActivityAPI(api).Activity(ctx, 0)
		if err != nil {
			t.Fatalf("Activity failed: %v", err)
		}
		if len(posts) != 1 || posts[0].Platform != "medium" || posts[0].Status != "queued" {
			t.Errorf("unexpected posts: %+v", posts)
		}
	})
}

func TestActivityEndpoint(t *testing.T) {
	_, srv, _ := newTestBackend(t, "")

	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusOK},
		{"?limit=5", http.StatusOK},
		{"?limit=0", http.StatusOK},
		{"?limit=-1", http.StatusBadRequest},
		{"?limit=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/dashboard/activity" + tt.query)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
			if tt.want == http.StatusOK {
				var body services.ActivityResponse
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("invalid body: %v", err)
				}
				if body.Posts == nil {
					t.Error("posts should encode as an empty array")
				}
			}
		})
	}
}

func TestSyncEndpoint(t *testing.T) {
	ctx := context.Background()
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer feedSrv.Close()

	backend, _, api := newTestBackend(t, feedSrv.URL, WithFeedTimeout(5*time.Second))
	activity := services.NewActivityAPI(api)

	t.Run("unknown scope", func(t *testing.T) {
		_, err := activity.TriggerSync(ctx, "myspace")
		var se *services.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %v", err)
		}
	})

	t.Run("all", func(t *testing.T) {
		resp, err := activity.TriggerSync(ctx, "all")
		if err != nil {
			t.Fatalf("TriggerSync failed: %v", err)
		}
		if len(resp.Enqueued) != 1 || resp.Enqueued[0] != "devto" {
			t.Errorf("expected only feed-backed platforms, got %v", resp.Enqueued)
		}
		backend.Syncer().Wait()

		posts, err := activity.Activity(ctx, 0)
		if err != nil {
			t.Fatalf("Activity failed: %v", err)
		}
		if len(posts) != 2 {
			t.Fatalf("expected 2 synced posts, got %d", len(posts))
		}
		if posts[0].Title != "Hello World" || posts[0].RemoteID != "dev-1" {
			t.Errorf("dated post should come first, got %+v", posts[0])
		}
		if posts[1].RemoteID != "https://dev.to/me/second" || posts[1].PublishedAt.Valid() {
			t.Errorf("link should stand in for a missing guid, got %+v", posts[1])
		}
	})

	t.Run("resync is idempotent", func(t *testing.T) {
		if _, err := activity.TriggerSync(ctx, "devto"); err != nil {
			t.Fatalf("TriggerSync failed: %v", err)
		}
		backend.Syncer().Wait()
		posts, _ := activity.Activity(ctx, 0)
		if len(posts) != 2 {
			t.Errorf("expected 2 posts after resync, got %d", len(posts))
		}
	})
}

func TestFeedSyncerClose(t *testing.T) {
	var hits atomic.Int32
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleFeed)
	}))
	defer feedSrv.Close()

	syncer := NewFeedSyncer(repositories.NewPostRepository(setupTestDB(t), string(platforms.SelfID)), nil, time.Second)
	row := platforms.Platform{ID: "devto", Label: "DEV", FeedURL: feedSrv.URL, Sync: true}

	if got := syncer.Enqueue([]platforms.Platform{row}); len(got) != 1 {
		t.Fatalf("expected devto to be enqueued, got %v", got)
	}
	syncer.Wait()
	syncer.Close()
	syncer.Close()

	if got := syncer.Enqueue([]platforms.Platform{row}); len(got) != 0 {
		t.Errorf("expected nothing enqueued after close, got %v", got)
	}
	syncer.Wait()
	if n := hits.Load(); n != 1 {
		t.Errorf("expected one feed fetch, got %d", n)
	}
}

func TestBackendAuth(t *testing.T) {
	_, srv, _ := newTestBackend(t, "", WithToken("s3cret"))

	resp, err := http.Get(srv.URL + "/api/dashboard/activity")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}

	client := services.NewAPIService(srv.URL, services.NewHTTPClient("s3cret", 5*time.Second))
	if _, err := services.NewActivityAPI(client).Activity(context.Background(), 0); err != nil {
		t.Errorf("authorized request failed: %v", err)
	}
}

type stubUploader struct {
	filename string
	size     int
}

func (s *stubUploader) Upload(_ context.Context, filename string, data []byte, _ string) (string, error) {
	s.filename, s.size = filename, len(data)
	return "https://cdn.example.com/uploads/" + filename, nil
}

func TestUploadEndpoint(t *testing.T) {
	post := func(t *testing.T, url string, field string, data []byte) *http.Response {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile(field, "cover.png")
		fw.Write(data)
		mw.Close()
		resp, err := http.Post(url+"/api/upload", mw.FormDataContentType(), &buf)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		return resp
	}

	t.Run("not configured", func(t *testing.T) {
		_, srv, _ := newTestBackend(t, "")
		resp := post(t, srv.URL, "file", []byte("x"))
		resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", resp.StatusCode)
		}
	})

	uploader := &stubUploader{}
	_, srv, _ := newTestBackend(t, "", WithUploader(uploader))

	t.Run("stores file", func(t *testing.T) {
		resp := post(t, srv.URL, "file", []byte("png-bytes"))
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body map[string]string
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body["url"] != "https://cdn.example.com/uploads/cover.png" {
			t.Errorf("unexpected url: %v", body)
		}
		if uploader.filename != "cover.png" || uploader.size != len("png-bytes") {
			t.Errorf("uploader got %s (%d bytes)", uploader.filename, uploader.size)
		}
	})

	t.Run("missing file field", func(t *testing.T) {
		resp := post(t, srv.URL, "image", []byte("x"))
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}
	})
}
