package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"todoapp/internal/domain/todo"
)

func newTestFactory(t *testing.T, handler http.HandlerFunc) *Factory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := NewFactory(Config{URL: srv.URL + "/", AnonKey: "anon-key", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewFactory() failed: %v", err)
	}
	return f
}

func TestNewFactory_Configuration(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "https://abc.supabase.co", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"no scheme", "abc.supabase.co", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(Config{URL: tt.url})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFactory(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("NewFactory(%q) error = %v, want ErrConfiguration", tt.url, err)
			}
		})
	}
}

func TestClient_List(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/rest/v1/todos" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("order"); got != "id.asc" {
			t.Errorf("order = %q, want id.asc", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("apikey"); got != "anon-key" {
			t.Errorf("apikey = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"task":"a","is_complete":false,"user_id":"user_42"},{"id":2,"task":"b","is_complete":true,"user_id":"user_42"}]`))
	})

	todos, err := f.New("access-token").List(context.Background())
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(todos) != 2 || todos[1].Task != "b" || !todos[1].IsComplete {
		t.Errorf("List() = %+v", todos)
	}
}

func TestClient_Create(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Prefer = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["task"] != "buy milk" || body["user_id"] != "user_42" {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":1,"task":"buy milk","is_complete":false,"user_id":"user_42"}]`))
	})

	got, err := f.New("tok").Create(context.Background(), todo.CreateParams{Task: "buy milk", UserID: "user_42"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	want := todo.Todo{ID: 1, Task: "buy milk", UserID: "user_42"}
	if *got != want {
		t.Errorf("Create() = %+v, want %+v", *got, want)
	}
}

func TestClient_CreateDatastoreError(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"code":"42501","message":"new row violates row-level security policy for table \"todos\"","details":null,"hint":null}`))
	})

	_, err := f.New("tok").Create(context.Background(), todo.CreateParams{Task: "x", UserID: "someone-else"})
	var dsErr *DatastoreError
	if !errors.As(err, &dsErr) {
		t.Fatalf("Create() error = %v, want *DatastoreError", err)
	}
	if dsErr.Status != http.StatusForbidden || dsErr.Code != "42501" {
		t.Errorf("DatastoreError = %+v", dsErr)
	}
	if err.Error() != `new row violates row-level security policy for table "todos"` {
		t.Errorf("Error() = %q, want datastore message", err.Error())
	}
}

func TestClient_NonJSONError(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := f.New("tok").List(context.Background())
	var dsErr *DatastoreError
	if !errors.As(err, &dsErr) {
		t.Fatalf("List() error = %v, want *DatastoreError", err)
	}
	if dsErr.Message != "bad gateway" {
		t.Errorf("Message = %q", dsErr.Message)
	}
}

func TestClient_SetComplete(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "eq.1" {
			t.Errorf("id filter = %q", got)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["is_complete"] != true {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`[{"id":1,"task":"a","is_complete":true,"user_id":"user_42"}]`))
	})

	got, err := f.New("tok").SetComplete(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("SetComplete() failed: %v", err)
	}
	if !got.IsComplete {
		t.Errorf("SetComplete() = %+v, want is_complete true", got)
	}
}

func TestClient_SetCompleteNoRow(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := f.New("tok").SetComplete(context.Background(), 5, true)
	if !errors.Is(err, todo.ErrNotFound) {
		t.Errorf("SetComplete() error = %v, want todo.ErrNotFound", err)
	}
}

func TestClient_Delete(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"deleted", `[{"id":3,"task":"a","is_complete":false,"user_id":"user_42"}]`, nil},
		{"no visible row", `[]`, todo.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s, want DELETE", r.Method)
				}
				if got := r.URL.Query().Get("id"); got != "eq.3" {
					t.Errorf("id filter = %q", got)
				}
				w.Write([]byte(tt.body))
			})

			_, err := f.New("tok").Delete(context.Background(), 3)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Delete() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
