package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	dubbingModel "dubber/internal/model/dubbing"
	"dubber/internal/pkg/audiokit"
	"dubber/internal/pkg/dubbing"
	"dubber/internal/pkg/ffmpeg"
	"dubber/internal/pkg/storage"
	"dubber/internal/pkg/storage/local"
	jobRepo "dubber/internal/repository/dubbing"
)

// memoryJobRepo 内存实现的任务仓库
type memoryJobRepo struct {
	mu   sync.Mutex
	jobs map[string]dubbingModel.Job
}

func newMemoryJobRepo() *memoryJobRepo {
	return &memoryJobRepo{jobs: map[string]dubbingModel.Job{}}
}

func (r *memoryJobRepo) Create(_ context.Context, job *dubbingModel.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepo) FindByID(_ context.Context, id, userID string) (*dubbingModel.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || (userID != "" && job.UserID != userID) {
		return nil, jobRepo.ErrJobNotFound
	}
	return &job, nil
}

func (r *memoryJobRepo) ListByUser(_ context.Context, userID string, _, _ int64, status string) ([]*dubbingModel.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*dubbingModel.Job
	for _, job := range r.jobs {
		if job.UserID == userID && (status == "" || string(job.Status) == status) {
			list = append(list, &job)
		}
	}
	return list, int64(len(list)), nil
}

func (r *memoryJobRepo) Update(_ context.Context, job *dubbingModel.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.UpdatedAt = time.Now()
	r.jobs[job.ID] = *job
	return nil
}

func (r *memoryJobRepo) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || job.UserID != userID {
		return jobRepo.ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *memoryJobRepo) FailUnfinished(_ context.Context, message string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.jobs {
		if !job.Status.IsTerminal() {
			job.Status = dubbingModel.JobStatusFailed
			job.ErrorMessage = message
			r.jobs[id] = job
			n++
		}
	}
	return n, nil
}

// waitJob 等待任务进入终态
func waitJob(repo *memoryJobRepo, id string) dubbingModel.Job {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.FindByID(context.Background(), id, "")
		if err == nil && job.Status.IsTerminal() {
			return *job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := repo.FindByID(context.Background(), id, "")
	return *job
}

const twoCueSheet = "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\n00:00:01,500 --> 00:00:02,000\nWorld\n"

func TestDubbingService(t *testing.T) {
	Convey("DubbingService 管理配音任务", t, func() {
		ctx := context.Background()
		repo := newMemoryJobRepo()
		store, err := local.NewLocalStorage(t.TempDir(), "http://localhost:8080/files")
		So(err, ShouldBeNil)

		kit := audiokit.New(ffmpeg.NewClient(ffmpeg.Config{}), audiokit.Config{SampleRate: 8000, ExportFormat: "wav"})
		failText := ""
		synth := dubbing.SynthesizerFunc(func(ctx context.Context, req dubbing.SynthesisRequest) (dubbing.Clip, error) {
			if req.Text == failText {
				return dubbing.Clip{}, errors.New("voice rejected")
			}
			return kit.Silence(ctx, 500)
		})
		dubber := dubbing.NewDubber(synth, kit, dubbing.Config{DefaultVoice: "BV001"}, dubbing.WithExporter(kit))
		svc := NewDubbingService(repo, store, dubber, DubbingServiceConfig{})
		defer func() { _ = svc.Shutdown(ctx) }()

		Convey("成功的任务上传成品和落点报告", func() {
			created, err := svc.CreateJob(ctx, &CreateJobRequest{UserID: "u1", CueSheet: []byte(twoCueSheet)})
			So(err, ShouldBeNil)
			So(created.CueCount, ShouldEqual, 2)
			So(created.Voice.VoiceID, ShouldEqual, "BV001")

			job := waitJob(repo, created.JobID)
			So(job.Status, ShouldEqual, dubbingModel.JobStatusCompleted)
			So(job.DurationMs, ShouldEqual, 2000)
			So(job.OutputFormat, ShouldEqual, "wav")
			So(job.OutputKey, ShouldEqual, storage.JobKey("u1", created.JobID, "output.wav"))
			So(job.ReportKey, ShouldNotBeEmpty)

			download, err := svc.GetDownload(ctx, &GetDownloadRequest{UserID: "u1", JobID: created.JobID})
			So(err, ShouldBeNil)
			So(download.ContentType, ShouldEqual, "audio/wav")
			data, _ := io.ReadAll(download.Body)
			_ = download.Body.Close()
			So(int64(len(data)), ShouldEqual, job.OutputBytes)

			report, err := svc.GetDownload(ctx, &GetDownloadRequest{UserID: "u1", JobID: created.JobID, Artifact: ArtifactReport})
			So(err, ShouldBeNil)
			text, _ := io.ReadAll(report.Body)
			_ = report.Body.Close()
			So(string(text), ShouldContainSubstring, "00:00:01,500 --> 00:00:02,000")

			Convey("其他用户看不到该任务", func() {
				_, err := svc.GetJob(ctx, "u2", created.JobID)
				So(errors.Is(err, ErrJobNotFound), ShouldBeTrue)
			})

			Convey("删除任务同时删除产物", func() {
				So(svc.DeleteJob(ctx, "u1", created.JobID), ShouldBeNil)
				_, err := store.Download(ctx, job.OutputKey)
				So(errors.Is(err, storage.ErrNotFound), ShouldBeTrue)
				_, err = svc.GetJob(ctx, "u1", created.JobID)
				So(errors.Is(err, ErrJobNotFound), ShouldBeTrue)
			})
		})

		Convey("字幕表无法解析时同步返回 ParseError，不创建任务", func() {
			_, err := svc.CreateJob(ctx, &CreateJobRequest{UserID: "u1", CueSheet: []byte("not a cue sheet")})
			So(dubbing.KindOf(err), ShouldEqual, dubbing.ErrorKindParse)
			So(len(repo.jobs), ShouldEqual, 0)
		})

		Convey("合成失败时任务失败并记录失败的 cue", func() {
			failText = "World"
			created, err := svc.CreateJob(ctx, &CreateJobRequest{UserID: "u1", CueSheet: []byte(twoCueSheet)})
			So(err, ShouldBeNil)

			job := waitJob(repo, created.JobID)
			So(job.Status, ShouldEqual, dubbingModel.JobStatusFailed)
			So(job.ErrorKind, ShouldEqual, string(dubbing.ErrorKindSynthesis))
			So(job.FailedCue, ShouldEqual, 2)
			So(job.OutputKey, ShouldBeEmpty)

			_, err = svc.GetDownload(ctx, &GetDownloadRequest{UserID: "u1", JobID: created.JobID})
			So(errors.Is(err, ErrJobFailed), ShouldBeTrue)
		})

		Convey("未结束的任务不能下载或删除", func() {
			_ = repo.Create(ctx, &dubbingModel.Job{ID: "j-pending", UserID: "u1", Status: dubbingModel.JobStatusRunning})

			_, err := svc.GetDownload(ctx, &GetDownloadRequest{UserID: "u1", JobID: "j-pending"})
			So(errors.Is(err, ErrJobNotFinished), ShouldBeTrue)
			So(errors.Is(svc.DeleteJob(ctx, "u1", "j-pending"), ErrJobBusy), ShouldBeTrue)

			Convey("重启后遗留任务被标记为失败", func() {
				So(svc.RecoverUnfinished(ctx), ShouldBeNil)
				job, _ := svc.GetJob(ctx, "u1", "j-pending")
				So(job.Status, ShouldEqual, dubbingModel.JobStatusFailed)
			})
		})

		Convey("未知的产物类型", func() {
			_ = repo.Create(ctx, &dubbingModel.Job{ID: "j-done", UserID: "u1", Status: dubbingModel.JobStatusCompleted, OutputKey: "k"})
			_, err := svc.GetDownload(ctx, &GetDownloadRequest{UserID: "u1", JobID: "j-done", Artifact: "video"})
			So(errors.Is(err, ErrUnknownFile), ShouldBeTrue)
		})

		Convey("关闭后拒绝新任务", func() {
			So(svc.Shutdown(ctx), ShouldBeNil)
			_, err := svc.CreateJob(ctx, &CreateJobRequest{UserID: "u1", CueSheet: []byte(twoCueSheet)})
			So(errors.Is(err, ErrShuttingDown), ShouldBeTrue)
		})
	})
}
