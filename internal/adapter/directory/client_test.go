package directory_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dvidales/appliq/internal/adapter/directory"
)

func TestUserClient_Exists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/users/u-1":
			w.WriteHeader(http.StatusOK)
		case "/api/v1/users/u-missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	users := directory.NewUserClient(server.URL, server.Client())
	ctx := context.Background()

	exists, err := users.Exists(ctx, "u-1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("u-1 should exist")
	}

	exists, err = users.Exists(ctx, "u-missing")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("u-missing should not exist")
	}

	if _, err := users.Exists(ctx, "u-err"); err == nil {
		t.Error("a 500 response must surface as an error, not a verdict")
	}
}

func TestUserClient_Exists_ServiceDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // Closed immediately: connection refused.

	users := directory.NewUserClient(server.URL, nil)
	if _, err := users.Exists(context.Background(), "u-1"); err == nil {
		t.Error("expected error when service is unreachable")
	}
}

func TestProductClient_Exists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/products/p-1" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	products := directory.NewProductClient(server.URL, server.Client())

	exists, err := products.Exists(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("p-1 should exist")
	}
}

func TestFileClient_ExistsBatch(t *testing.T) {
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/files/exists" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload struct {
			FileIDs []string `json:"file_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		gotIDs = payload.FileIDs

		// Only f-1 exists downstream.
		_ = json.NewEncoder(w).Encode(map[string][]string{"existing": {"f-1"}})
	}))
	defer server.Close()

	files := directory.NewFileClient(server.URL, server.Client())

	confirmed, err := files.ExistsBatch(context.Background(), []string{"f-1", "f-2"})
	if err != nil {
		t.Fatalf("ExistsBatch failed: %v", err)
	}
	if len(gotIDs) != 2 {
		t.Errorf("request carried %v, want both ids", gotIDs)
	}
	if !confirmed["f-1"] {
		t.Error("f-1 should be confirmed")
	}
	if confirmed["f-2"] {
		t.Error("f-2 should not be confirmed")
	}
}

func TestFileClient_ExistsBatch_EmptySkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	files := directory.NewFileClient(server.URL, server.Client())

	confirmed, err := files.ExistsBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("ExistsBatch failed: %v", err)
	}
	if len(confirmed) != 0 {
		t.Errorf("confirmed = %v, want empty", confirmed)
	}
	if called {
		t.Error("empty batch must not hit the file service")
	}
}

func TestDispatcher_RoutesToOwningService(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	dispatcher := directory.NewDispatcher(
		directory.NewFileClient(server.URL, server.Client()),
		directory.NewTagClient(server.URL, server.Client()),
	)
	ctx := context.Background()

	if err := dispatcher.AttachFiles(ctx, "a-1", []string{"f-1"}); err != nil {
		t.Fatalf("AttachFiles failed: %v", err)
	}
	if err := dispatcher.CreateTags(ctx, []string{"vip"}); err != nil {
		t.Fatalf("CreateTags failed: %v", err)
	}
	if err := dispatcher.AttachTags(ctx, "a-1", []string{"vip"}); err != nil {
		t.Fatalf("AttachTags failed: %v", err)
	}

	want := []string{"/api/v1/files/attach", "/api/v1/tags", "/api/v1/tags/attach"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}
