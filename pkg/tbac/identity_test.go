package tbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentityClientAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/access_token" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Api-Key") != "key-1" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["agentic_service_id"] != "svc-9" {
			http.Error(w, "bad target", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-9"})
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, "key-1")
	token, err := client.AccessToken(context.Background(), "svc-9")
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if token != "tok-9" {
		t.Errorf("token = %q", token)
	}
}

func TestIdentityClientAuthorize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/authorize" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]bool{"authorized": body["token"] == "good"})
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, "key-1")

	ok, err := client.Authorize(context.Background(), "good")
	if err != nil || !ok {
		t.Errorf("good token: ok=%v err=%v", ok, err)
	}

	ok, err = client.Authorize(context.Background(), "bad")
	if err != nil || ok {
		t.Errorf("bad token: ok=%v err=%v", ok, err)
	}
}

func TestIdentityClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewIdentityClient(srv.URL, "key-1")
	if _, err := client.AccessToken(context.Background(), "svc"); err == nil {
		t.Error("expected error on HTTP 500")
	}
}
