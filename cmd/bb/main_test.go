package main

import (
	"testing"

	"github.com/vanderheijden86/beadbridge/pkg/config"
	"github.com/vanderheijden86/beadbridge/pkg/model"
)

func TestPickProject(t *testing.T) {
	projects := []model.Project{
		{ID: "aaa111222333", Name: "api"},
		{ID: "bbb444555666", Name: "web"},
	}

	tests := []struct {
		name     string
		selector string
		wantID   string
		wantErr  bool
	}{
		{"empty selector takes first", "", "aaa111222333", false},
		{"by name", "web", "bbb444555666", false},
		{"by id prefix", "bbb444", "bbb444555666", false},
		{"no match", "missing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickProject(projects, tt.selector)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("pickProject: %v", err)
			}
			if got.ID != tt.wantID {
				t.Errorf("got %s, want %s", got.ID, tt.wantID)
			}
		})
	}
}

func TestScanRoots(t *testing.T) {
	cfg := config.DefaultConfig()

	if roots := scanRoots("/a,/b", cfg); len(roots) != 2 || roots[0] != "/a" {
		t.Errorf("flag roots = %v", roots)
	}

	cfg.Discovery.ScanPaths = []string{"/configured"}
	if roots := scanRoots("", cfg); len(roots) != 1 || roots[0] != "/configured" {
		t.Errorf("config roots = %v", roots)
	}

	cfg.Discovery.ScanPaths = nil
	if roots := scanRoots("", cfg); len(roots) != 1 || roots[0] == "" {
		t.Errorf("cwd fallback = %v", roots)
	}
}
