package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestFetchToTemp(t *testing.T) {
	payload := []byte("RIFF....fake-audio-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	path, err := FetchToTemp(context.Background(), srv.URL+"/song.mp3")
	if err != nil {
		t.Fatalf("FetchToTemp: %v", err)
	}
	defer os.Remove(path)

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("staged %q, want %q", got, payload)
	}
}

func TestFetchToTempRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := FetchToTemp(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Fatal("expected an error for a 404 source")
	}
}

func TestRemoteExt(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://cdn.example.com/a/song.mp3", ".mp3"},
		{"https://cdn.example.com/song.flac?token=abc", ".flac"},
		{"https://cdn.example.com/song.wav#t=30", ".wav"},
		{"https://cdn.example.com/stream", ""},
		{"https://cdn.example.com/weird.verylongext", ""},
	}
	for _, tc := range cases {
		if got := RemoteExt(tc.url); got != tc.want {
			t.Fatalf("RemoteExt(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
