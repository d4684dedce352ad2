package http

// 错误码：前三位与 HTTP 状态码一致
const (
	CodeOK              = 0
	CodeInvalidRequest  = 40001
	CodeUnparsableSheet = 40002
	CodeUnknownArtifact = 40003
	CodeUnauthorized    = 40101
	CodeInvalidToken    = 40102
	CodeTokenExpired    = 40103
	CodeNotFound        = 40401
	CodeJobNotFinished  = 40901
	CodeJobFailed       = 40902
	CodePanic           = 50000
	CodeInternal        = 50001
	CodeShuttingDown    = 50301
)

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// SuccessResponse 成功响应（所有API共用）
type SuccessResponse struct {
	Code    int    `json:"code"`           // 状态码（0表示成功）
	Message string `json:"message"`        // 响应消息
	Data    any    `json:"data,omitempty"` // 响应数据（可选）
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(message string, data any) *SuccessResponse {
	return &SuccessResponse{
		Code:    CodeOK,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应，detail 为空字符串时省略
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}
