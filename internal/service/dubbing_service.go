package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	dubbingModel "dubber/internal/model/dubbing"
	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/id"
	"dubber/internal/pkg/logger"
	"dubber/internal/pkg/storage"
	jobRepo "dubber/internal/repository/dubbing"
)

var (
	ErrJobNotFound    = errors.New("配音任务不存在")
	ErrJobNotFinished = errors.New("配音任务尚未完成")
	ErrJobFailed      = errors.New("配音任务已失败")
	ErrJobBusy        = errors.New("配音任务正在执行")
	ErrUnknownFile    = errors.New("未知的产物类型")
	ErrShuttingDown   = errors.New("服务正在关闭")
)

// 产物类型
const (
	ArtifactAudio  = "audio"
	ArtifactReport = "report"
)

// 默认值
const (
	DefaultMaxConcurrentJobs = 2
	DefaultJobTimeout        = 30 * time.Minute
	DefaultDownloadURLExpiry = time.Hour

	persistTimeout = 10 * time.Second
)

// Dubber 配音编排器（dubbing.Dubber 实现）
type Dubber interface {
	DubCues(ctx context.Context, cues []dubbing.Cue, settings dubbing.VoiceSettings) (*dubbing.Result, error)
	Config() dubbing.Config
}

// DubbingService 配音任务服务接口
type DubbingService interface {
	// CreateJob 同步解析字幕表并创建任务，配音在后台执行
	// 字幕表无法解析时返回 *dubbing.ParseError，不创建任务
	CreateJob(ctx context.Context, req *CreateJobRequest) (*CreateJobResult, error)

	// GetJob 查询任务（仅限本人）
	GetJob(ctx context.Context, userID, jobID string) (*dubbingModel.Job, error)

	// ListJobs 查询任务列表
	ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResult, error)

	// GetDownload 获取产物：本地存储返回文件流，对象存储返回预签名URL
	GetDownload(ctx context.Context, req *GetDownloadRequest) (*GetDownloadResult, error)

	// DeleteJob 删除已结束的任务及其产物
	DeleteJob(ctx context.Context, userID, jobID string) error

	// RecoverUnfinished 将上次进程遗留的未完成任务标记为失败
	RecoverUnfinished(ctx context.Context) error

	// Shutdown 停止接收新任务并等待执行中的任务结束
	Shutdown(ctx context.Context) error
}

// DubbingServiceConfig 服务配置
type DubbingServiceConfig struct {
	MaxConcurrent     int           // 同时执行的任务数
	JobTimeout        time.Duration // 单个任务超时
	DownloadURLExpiry time.Duration // 预签名URL有效期
}

// dubbingService 配音任务服务实现
type dubbingService struct {
	repo    jobRepo.JobRepository
	storage storage.Storage
	dubber  Dubber
	cfg     DubbingServiceConfig

	sem      chan struct{}
	wg       sync.WaitGroup
	baseCtx  context.Context
	stop     context.CancelFunc
	mu       sync.Mutex
	stopping bool
}

// NewDubbingService 创建配音任务服务
func NewDubbingService(repo jobRepo.JobRepository, store storage.Storage, dubber Dubber, cfg DubbingServiceConfig) DubbingService {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrentJobs
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.DownloadURLExpiry <= 0 {
		cfg.DownloadURLExpiry = DefaultDownloadURLExpiry
	}

	baseCtx, stop := context.WithCancel(context.Background())
	return &dubbingService{
		repo:    repo,
		storage: store,
		dubber:  dubber,
		cfg:     cfg,
		sem:     make(chan struct{}, cfg.MaxConcurrent),
		baseCtx: baseCtx,
		stop:    stop,
	}
}

// CreateJobRequest 创建任务请求
type CreateJobRequest struct {
	UserID   string
	Name     string
	CueSheet []byte
	Voice    dubbing.VoiceSettings
}

// CreateJobResult 创建任务结果
type CreateJobResult struct {
	JobID    string                `json:"job_id"`
	Status   string                `json:"status"`
	CueCount int                   `json:"cue_count"`
	Voice    dubbing.VoiceSettings `json:"voice"`
}

// CreateJob 创建配音任务
func (s *dubbingService) CreateJob(ctx context.Context, req *CreateJobRequest) (*CreateJobResult, error) {
	dubCfg := s.dubber.Config()
	if len(req.CueSheet) > dubCfg.MaxSheetBytes {
		return nil, &dubbing.ParseError{Reason: fmt.Sprintf("cue sheet exceeds %d bytes", dubCfg.MaxSheetBytes)}
	}

	cues, err := dubbing.ParseCues(dubbing.DecodeSheet(req.CueSheet))
	if err != nil {
		return nil, err
	}

	settings := req.Voice.Normalize(dubCfg.DefaultVoice)
	job := &dubbingModel.Job{
		ID:          id.New(),
		UserID:      req.UserID,
		Name:        req.Name,
		Status:      dubbingModel.JobStatusPending,
		VoiceID:     settings.VoiceID,
		RatePercent: settings.RatePercent,
		PitchHz:     settings.PitchHz,
		CueCount:    len(cues),
		SheetBytes:  len(req.CueSheet),
	}
	if job.Name == "" {
		job.Name = job.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, ErrShuttingDown
	}

	if err := s.repo.Create(ctx, job); err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to create dubbing job")
		return nil, fmt.Errorf("failed to create dubbing job: %w", err)
	}

	s.wg.Add(1)
	go s.process(job, cues, settings)

	log.Info().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Int("cues", job.CueCount).
		Msg("dubbing job created")

	return &CreateJobResult{
		JobID:    job.ID,
		Status:   string(job.Status),
		CueCount: job.CueCount,
		Voice:    settings,
	}, nil
}

// process 后台执行配音任务
func (s *dubbingService) process(job *dubbingModel.Job, cues []dubbing.Cue, settings dubbing.VoiceSettings) {
	defer s.wg.Done()

	ctx := logger.WithJob(s.baseCtx, job.ID)
	l := zerolog.Ctx(ctx)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("dubbing job panicked")
			s.markFailed(ctx, job, fmt.Errorf("panic: %v", r))
		}
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.markFailed(ctx, job, ErrShuttingDown)
		return
	}
	defer func() { <-s.sem }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	now := time.Now()
	job.Status = dubbingModel.JobStatusRunning
	job.StartedAt = &now
	s.persist(job)

	result, err := s.dubber.DubCues(ctx, cues, settings)
	if err != nil {
		s.markFailed(ctx, job, err)
		return
	}

	if err := s.saveArtifacts(ctx, job, result); err != nil {
		s.markFailed(ctx, job, err)
		return
	}

	summarize(job, result)
	completed := time.Now()
	job.Status = dubbingModel.JobStatusCompleted
	job.CompletedAt = &completed
	s.persist(job)

	l.Info().
		Int64("duration_ms", job.DurationMs).
		Int64("output_bytes", job.OutputBytes).
		Int("truncated", job.Truncated).
		Msg("dubbing job completed")
}

// saveArtifacts 上传成品音频和落点报告
func (s *dubbingService) saveArtifacts(ctx context.Context, job *dubbingModel.Job, result *dubbing.Result) error {
	format := result.Format
	if format == "" {
		format = "wav"
	}

	outputKey := storage.JobKey(job.UserID, job.ID, "output."+format)
	url, err := s.storage.Upload(ctx, outputKey, bytes.NewReader(result.Audio), storage.ContentType(outputKey))
	if err != nil {
		return fmt.Errorf("failed to upload output: %w", err)
	}
	job.OutputKey = outputKey
	job.OutputURL = url
	job.OutputFormat = format
	job.OutputBytes = int64(len(result.Audio))

	report, err := dubbing.FormatPlacementSRT(result.Placements)
	if err != nil {
		return err
	}
	if report == "" {
		return nil
	}

	reportKey := storage.JobKey(job.UserID, job.ID, "placements.srt")
	if _, err := s.storage.Upload(ctx, reportKey, bytes.NewReader([]byte(report)), storage.ContentType(reportKey)); err != nil {
		return fmt.Errorf("failed to upload placement report: %w", err)
	}
	job.ReportKey = reportKey
	return nil
}

// summarize 将落点统计写入任务记录
func summarize(job *dubbingModel.Job, result *dubbing.Result) {
	job.DurationMs = result.DurationMs
	for _, p := range result.Placements {
		if p.Truncated {
			job.Truncated++
		}
		if p.Clamped {
			job.Clamped++
		}
		if p.Skipped {
			job.Skipped++
		}
		if p.Overlap {
			job.Overlapping++
		}
	}
}

// markFailed 任务失败：清理已上传的产物并记录错误
func (s *dubbingService) markFailed(ctx context.Context, job *dubbingModel.Job, err error) {
	s.removeArtifacts(job)

	now := time.Now()
	job.Status = dubbingModel.JobStatusFailed
	job.ErrorKind = string(dubbing.KindOf(err))
	job.ErrorMessage = err.Error()
	job.FailedCue = dubbing.FailedOrdinal(err)
	job.CompletedAt = &now
	s.persist(job)

	zerolog.Ctx(ctx).Warn().Err(err).
		Str("kind", job.ErrorKind).
		Int("failed_cue", job.FailedCue).
		Msg("dubbing job failed")
}

// removeArtifacts 删除任务产物，失败只记录日志
func (s *dubbingService) removeArtifacts(job *dubbingModel.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	for _, key := range []string{job.OutputKey, job.ReportKey} {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Str("key", key).Msg("failed to delete job artifact")
		}
	}
	job.OutputKey, job.OutputURL, job.ReportKey = "", "", ""
	job.OutputBytes = 0
}

// persist 保存任务状态，不受任务 context 取消影响
func (s *dubbingService) persist(job *dubbingModel.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.repo.Update(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("status", string(job.Status)).Msg("failed to update dubbing job")
	}
}

// GetJob 查询任务
func (s *dubbingService) GetJob(ctx context.Context, userID, jobID string) (*dubbingModel.Job, error) {
	job, err := s.repo.FindByID(ctx, jobID, userID)
	if err != nil {
		if errors.Is(err, jobRepo.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find dubbing job: %w", err)
	}
	return job, nil
}

// ListJobsRequest 查询任务列表请求
type ListJobsRequest struct {
	UserID   string
	Status   string
	Page     int64
	PageSize int64
}

// ListJobsResult 查询任务列表结果
type ListJobsResult struct {
	Jobs     []*dubbingModel.Job `json:"jobs"`
	Total    int64               `json:"total"`
	Page     int64               `json:"page"`
	PageSize int64               `json:"page_size"`
}

// ListJobs 查询任务列表
func (s *dubbingService) ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResult, error) {
	jobs, total, err := s.repo.ListByUser(ctx, req.UserID, req.Page, req.PageSize, req.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to list dubbing jobs: %w", err)
	}
	return &ListJobsResult{
		Jobs:     jobs,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// GetDownloadRequest 获取产物请求
type GetDownloadRequest struct {
	UserID   string
	JobID    string
	Artifact string // audio（默认）或 report
}

// GetDownloadResult 获取产物结果，URL 和 Body 二选一
type GetDownloadResult struct {
	URL         string
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// GetDownload 获取产物
func (s *dubbingService) GetDownload(ctx context.Context, req *GetDownloadRequest) (*GetDownloadResult, error) {
	job, err := s.GetJob(ctx, req.UserID, req.JobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case dubbingModel.JobStatusFailed:
		return nil, ErrJobFailed
	case dubbingModel.JobStatusCompleted:
	default:
		return nil, ErrJobNotFinished
	}

	var key string
	switch req.Artifact {
	case "", ArtifactAudio:
		key = job.OutputKey
	case ArtifactReport:
		key = job.ReportKey
	default:
		return nil, ErrUnknownFile
	}
	if key == "" {
		return nil, ErrJobNotFound
	}

	result := &GetDownloadResult{
		ContentType: storage.ContentType(key),
		FileName:    job.ID + path.Ext(key),
	}

	if s.storage.GetStorageType() == string(storage.StorageTypeLocal) {
		body, err := s.storage.Download(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrJobNotFound
			}
			return nil, fmt.Errorf("failed to open artifact: %w", err)
		}
		result.Body = body
		return result, nil
	}

	url, err := s.storage.GetPresignedDownloadURL(ctx, key, s.cfg.DownloadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate download url: %w", err)
	}
	result.URL = url
	return result, nil
}

// DeleteJob 删除任务
func (s *dubbingService) DeleteJob(ctx context.Context, userID, jobID string) error {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return ErrJobBusy
	}

	s.removeArtifacts(job)
	if err := s.repo.Delete(ctx, jobID, userID); err != nil {
		if errors.Is(err, jobRepo.ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to delete dubbing job: %w", err)
	}

	log.Info().Str("job_id", jobID).Str("user_id", userID).Msg("dubbing job deleted")
	return nil
}

// RecoverUnfinished 将遗留的未完成任务标记为失败
func (s *dubbingService) RecoverUnfinished(ctx context.Context) error {
	n, err := s.repo.FailUnfinished(ctx, "interrupted by server restart")
	if err != nil {
		return fmt.Errorf("failed to recover unfinished jobs: %w", err)
	}
	if n > 0 {
		log.Warn().Int64("jobs", n).Msg("marked interrupted dubbing jobs as failed")
	}
	return nil
}

// Shutdown 停止服务
// 先等待执行中的任务，ctx 到期后取消剩余任务
func (s *dubbingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.stop()
		return nil
	case <-ctx.Done():
		s.stop()
		<-done
		return ctx.Err()
	}
}
