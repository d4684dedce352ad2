package dubbing

import (
	"dubber/internal/service"
)

// Handler 配音模块处理器
type Handler struct {
	dubbingService service.DubbingService
	maxSheetBytes  int64
}

// NewHandler 创建配音模块处理器
// maxSheetBytes 限制上传字幕表的读取量，超出部分由 service 层拒绝
func NewHandler(dubbingService service.DubbingService, maxSheetBytes int64) *Handler {
	return &Handler{
		dubbingService: dubbingService,
		maxSheetBytes:  maxSheetBytes,
	}
}
