package id

import (
	"strings"

	"github.com/google/uuid"
)

// contentNamespace 内容寻址 ID 的命名空间
var contentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("dubber/content"))

// New 生成新的UUID（string格式）
func New() string {
	return uuid.New().String()
}

// IsValid 验证UUID格式是否有效
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// FromContent 根据内容生成确定性的 UUIDv5，相同输入总是得到相同 ID
func FromContent(parts ...string) string {
	return uuid.NewSHA1(contentNamespace, []byte(strings.Join(parts, "\x00"))).String()
}
