package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// Storage 配音产物存储接口
type Storage interface {
	// Upload 上传对象，返回访问URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 下载对象
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetPresignedDownloadURL 获取预签名下载URL
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, key string) error

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// JobKey 生成任务产物的对象 key：dubbing/{user}/{job}/{name}
func JobKey(userID, jobID, name string) string {
	return path.Join("dubbing", cleanSegment(userID), cleanSegment(jobID), cleanSegment(name))
}

// ContentType 根据扩展名返回 Content-Type
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".srt":
		return "application/x-subrip"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

func cleanSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}
