package storagefactory

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"dubber/internal/config"
	"dubber/internal/pkg/storage"
)

func TestNewStorage(t *testing.T) {
	tmpDir := t.TempDir()
	baseURL := "http://localhost:8080/storage"

	tests := []struct {
		name     string
		cfg      *config.StorageConfig
		wantType string
		wantErr  bool
	}{
		{
			name: "valid local storage config",
			cfg: &config.StorageConfig{
				Type: "local",
				Local: &config.LocalConfig{
					BasePath: tmpDir,
					BaseURL:  baseURL,
				},
			},
			wantType: "local",
		},
		{
			name: "missing local config",
			cfg: &config.StorageConfig{
				Type:  "local",
				Local: nil,
			},
			wantErr: true,
		},
		{
			name: "missing oss config",
			cfg: &config.StorageConfig{
				Type: "oss",
			},
			wantErr: true,
		},
		{
			name: "unsupported storage type",
			cfg: &config.StorageConfig{
				Type: "s3",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStorage(context.Background(), tt.cfg)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStorage() expected error, got nil")
				}
				if s != nil {
					t.Errorf("NewStorage() expected nil storage, got %v", s)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewStorage() unexpected error: %v", err)
			}
			if s.GetStorageType() != tt.wantType {
				t.Errorf("GetStorageType() = %v, want %v", s.GetStorageType(), tt.wantType)
			}
		})
	}
}

func TestLocalStorage_Operations(t *testing.T) {
	baseURL := "http://localhost:8080/storage"
	cfg := &config.StorageConfig{
		Type: "local",
		Local: &config.LocalConfig{
			BasePath: t.TempDir(),
			BaseURL:  baseURL,
		},
	}

	ctx := context.Background()
	s, err := NewStorage(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	key := storage.JobKey("user-1", "job-1", "report.srt")
	content := "1\n00:00:00,000 --> 00:00:01,000\nHello\n"

	url, err := s.Upload(ctx, key, strings.NewReader(content), storage.ContentType(key))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	expectedURL := baseURL + "/" + key
	if url != expectedURL {
		t.Errorf("Upload() url = %v, want %v", url, expectedURL)
	}

	reader, err := s.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer reader.Close()

	downloaded, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(downloaded) != content {
		t.Errorf("Download() content = %v, want %v", string(downloaded), content)
	}

	presignedURL, err := s.GetPresignedDownloadURL(ctx, key, time.Hour)
	if err != nil {
		t.Fatalf("GetPresignedDownloadURL() error = %v", err)
	}
	if presignedURL != expectedURL {
		t.Errorf("GetPresignedDownloadURL() url = %v, want %v", presignedURL, expectedURL)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Download(ctx, key); err == nil {
		t.Errorf("Download() expected error after delete, got nil")
	}
}
