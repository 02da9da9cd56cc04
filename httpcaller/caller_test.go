package httpcaller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"apiflow/engine"
)

func TestCallSubstitutesPlaceholdersAndDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42" {
			t.Errorf("got path %q, want /users/42", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 42, "name": "ada"})
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: srv.URL, URLPath: "/users/{id}", Method: engine.MethodGET}

	result, err := caller.Call(context.Background(), cfg, map[string]any{"id": 42}, nil, "", engine.CacheDisabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := result.Data.(map[string]any)
	if !ok || data["name"] != "ada" {
		t.Errorf("got %v, want name=ada", result.Data)
	}
}

func TestCallMissingPlaceholderIsBindingError(t *testing.T) {
	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: "http://example.com", URLPath: "/users/{id}", Method: engine.MethodGET}

	_, err := caller.Call(context.Background(), cfg, map[string]any{}, nil, "", engine.CacheDisabled)
	if err == nil {
		t.Fatal("expected a binding error")
	}
	if engine.KindOf(err) != engine.KindBinding {
		t.Errorf("got kind %v, want %v", engine.KindOf(err), engine.KindBinding)
	}
}

func TestCallDataPathDescendsIntoResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"items": []any{"a", "b"}},
		})
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: srv.URL, Method: engine.MethodGET, DataPath: "result.items"}

	result, err := caller.Call(context.Background(), cfg, nil, nil, "", engine.CacheDisabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := result.Data.([]any)
	if !ok || len(items) != 2 {
		t.Errorf("got %v, want [a b]", result.Data)
	}
}

func TestCallHeaderAuthInjectsCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: srv.URL, Method: engine.MethodGET, Authentication: engine.AuthHeader}

	_, err := caller.Call(context.Background(), cfg, nil, map[string]any{"value": "secret-token"}, "", engine.CacheDisabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "secret-token" {
		t.Errorf("got Authorization=%q, want secret-token", gotAuth)
	}
}

func TestCallHttpErrorStatusIsHttpError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: srv.URL, Method: engine.MethodGET, Retries: 0}

	_, err := caller.Call(context.Background(), cfg, nil, nil, "", engine.CacheDisabled)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if engine.KindOf(err) != engine.KindHTTP {
		t.Errorf("got kind %v, want %v", engine.KindOf(err), engine.KindHTTP)
	}
}

func TestCallOffsetPaginationConcatenatesPages(t *testing.T) {
	pageSize := 2
	allItems := []any{"a", "b", "c", "d", "e"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := 0
		if o := r.URL.Query().Get("offset"); o != "" {
			json.Unmarshal([]byte(o), &offset)
		}
		end := offset + pageSize
		if end > len(allItems) {
			end = len(allItems)
		}
		if offset >= len(allItems) {
			json.NewEncoder(w).Encode([]any{})
			return
		}
		json.NewEncoder(w).Encode(allItems[offset:end])
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{
		URLHost: srv.URL, Method: engine.MethodGET,
		Pagination: &engine.Pagination{Type: engine.PaginationOffset, PageSize: pageSize},
	}

	result, err := caller.Call(context.Background(), cfg, nil, nil, "", engine.CacheDisabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, ok := result.Data.([]any)
	if !ok || len(items) != 5 {
		t.Fatalf("got %v, want 5 concatenated items", result.Data)
	}
	if result.PagesFetched != 3 {
		t.Errorf("got %d pages, want 3", result.PagesFetched)
	}
}

// TestCallCacheFingerprintIgnoresCredentialValue confirms the cache key is
// computed from pre-auth headers/query (spec.md §9): two calls differing
// only in the injected credential value must still hit the same cache
// entry, proving the fingerprint never saw the credential.
func TestCallCacheFingerprintIgnoresCredentialValue(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	caller := New(NewResponseCache())
	cfg := engine.ApiConfig{URLHost: srv.URL, Method: engine.MethodGET, Authentication: engine.AuthHeader}

	_, err := caller.Call(context.Background(), cfg, nil, map[string]any{"value": "token-one"}, "tenant-a", engine.CacheEnabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = caller.Call(context.Background(), cfg, nil, map[string]any{"value": "token-two"}, "tenant-a", engine.CacheEnabled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("got %d upstream calls, want 1 (second call should have hit the cache)", calls)
	}
}

func TestResponseCacheFingerprintStableAndTenantScoped(t *testing.T) {
	fpA := Fingerprint("tenant-a", "GET", "http://x/y", map[string]string{"H": "1"}, map[string]string{"q": "1"}, "")
	fpA2 := Fingerprint("tenant-a", "GET", "http://x/y", map[string]string{"H": "1"}, map[string]string{"q": "1"}, "")
	fpB := Fingerprint("tenant-b", "GET", "http://x/y", map[string]string{"H": "1"}, map[string]string{"q": "1"}, "")

	if fpA != fpA2 {
		t.Error("fingerprint must be stable for identical inputs")
	}
	if fpA == fpB {
		t.Error("fingerprint must differ across tenants")
	}
}
