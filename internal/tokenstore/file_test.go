package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTokenFile(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	return path
}

func TestFileStoreRead(t *testing.T) {
	tests := []struct {
		name    string
		content string
		perm    os.FileMode
		want    string
		wantErr string
	}{
		{name: "plain token", content: "abc123", perm: 0600, want: "abc123"},
		{name: "trailing newline trimmed", content: "abc123\n", perm: 0600, want: "abc123"},
		{name: "surrounding whitespace trimmed", content: "  abc123 \n", perm: 0600, want: "abc123"},
		{name: "empty file", content: "", perm: 0600, wantErr: "empty token"},
		{name: "whitespace only", content: " \n\t", perm: 0600, wantErr: "empty token"},
		{name: "group readable", content: "abc123", perm: 0640, wantErr: "insecure permissions"},
		{name: "world readable", content: "abc123", perm: 0644, wantErr: "insecure permissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTokenFile(t, tt.content, tt.perm)

			store, err := NewFileStore(path)
			if err != nil {
				t.Fatalf("NewFileStore failed: %v", err)
			}

			token, err := store.Read(context.Background())
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if token != tt.want {
				t.Errorf("token = %q, want %q", token, tt.want)
			}
		})
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if _, err := store.Read(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNewFileStoreEmptyPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFileStoreCancelledContext(t *testing.T) {
	store, err := NewFileStore(writeTokenFile(t, "abc", 0600))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Read(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
