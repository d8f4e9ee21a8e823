package gitsource

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{"HTTPS", "https://github.com/acme/decks.git", filepath.Join("repos", "github.com", "acme", "decks"), false},
		{"HTTPS without suffix", "https://gitlab.com/acme/decks", filepath.Join("repos", "gitlab.com", "acme", "decks"), false},
		{"SCP-like", "git@github.com:acme/decks.git", filepath.Join("repos", "github.com", "acme", "decks"), false},
		{"Plain path", "/home/ada/notes", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Expected an error for %s, but got path %s", tc.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath() returned an unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected path '%s', but got '%s'", tc.expected, got)
			}
		})
	}
}

func TestIsGitURL(t *testing.T) {
	for path, want := range map[string]bool{
		"https://github.com/acme/decks": true,
		"git@github.com:acme/decks.git": true,
		"/srv/decks.git":                true,
		"./notes":                       false,
		"/home/ada/notes":               false,
	} {
		if got := IsGitURL(path); got != want {
			t.Errorf("IsGitURL(%q) = %v, want %v", path, got, want)
		}
	}
}
