package dubbing

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dubbingModel "dubber/internal/model/dubbing"
	httputil "dubber/internal/pkg/http"
	"dubber/internal/service"
)

// ListJobsRequest 查询任务列表请求
type ListJobsRequest struct {
	Status   string `form:"status"`    // 状态筛选（可选）
	Page     int64  `form:"page"`      // 页码（默认1）
	PageSize int64  `form:"page_size"` // 每页数量（默认20）
}

// ListJobsResponseData 查询任务列表响应数据
type ListJobsResponseData struct {
	Jobs     []JobInfo `json:"jobs"`
	Total    int64     `json:"total"`
	Page     int64     `json:"page"`
	PageSize int64     `json:"page_size"`
}

// ListJobs 查询配音任务列表
// @Summary      查询配音任务列表
// @Description  按创建时间倒序返回当前用户的任务，支持状态筛选和分页
// @Tags         配音
// @Produce      json
// @Security     BearerAuth
// @Param        status     query     string  false  "状态筛选（pending/running/completed/failed）"
// @Param        page       query     int     false  "页码（默认1）"
// @Param        page_size  query     int     false  "每页数量（默认20，最大100）"
// @Success      200        {object}  map[string]interface{}  "成功响应"
// @Failure      400        {object}  ErrorResponse  "请求参数错误"
// @Failure      401        {object}  ErrorResponse  "未授权"
// @Failure      500        {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/dubbing/jobs [get]
func (h *Handler) ListJobs(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid query parameters", err.Error()))
		return
	}
	if req.Status != "" && !dubbingModel.ValidJobStatus(req.Status) {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse(httputil.CodeInvalidRequest, "Invalid status", req.Status))
		return
	}

	// 解析分页参数
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	result, err := h.dubbingService.ListJobs(c.Request.Context(), &service.ListJobsRequest{
		UserID:   userID,
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("success", ListJobsResponseData{
		Jobs:     toJobInfoList(result.Jobs),
		Total:    result.Total,
		Page:     result.Page,
		PageSize: result.PageSize,
	}))
}
