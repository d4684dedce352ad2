package dubbing

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dubber/internal/pkg/mongodb"
)

// JobStatus 配音任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal 是否为终态
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidJobStatus 校验状态筛选参数
func ValidJobStatus(s string) bool {
	switch JobStatus(s) {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// Job 配音任务实体
// 一个 Job 对应一次字幕表到音轨的完整生成，失败时不保留任何部分产物
type Job struct {
	ID     string    `bson:"id" json:"id"`           // 任务ID（UUID）
	UserID string    `bson:"user_id" json:"user_id"` // 用户ID
	Name   string    `bson:"name" json:"name"`       // 任务名称
	Status JobStatus `bson:"status" json:"status"`   // 状态

	VoiceID     string `bson:"voice_id" json:"voice_id"`         // 音色
	RatePercent int    `bson:"rate_percent" json:"rate_percent"` // 语速调整（%）
	PitchHz     int    `bson:"pitch_hz" json:"pitch_hz"`         // 音高调整（Hz）

	CueCount   int `bson:"cue_count" json:"cue_count"`     // cue 数量
	SheetBytes int `bson:"sheet_bytes" json:"sheet_bytes"` // 字幕表大小

	OutputKey    string `bson:"output_key,omitempty" json:"-"`                            // 成品存储 key
	OutputURL    string `bson:"output_url,omitempty" json:"output_url,omitempty"`         // 成品访问 URL
	OutputFormat string `bson:"output_format,omitempty" json:"output_format,omitempty"`   // mp3 / wav
	OutputBytes  int64  `bson:"output_bytes,omitempty" json:"output_bytes,omitempty"`     // 成品大小
	ReportKey    string `bson:"report_key,omitempty" json:"-"`                            // 落点报告存储 key
	DurationMs   int64  `bson:"duration_ms,omitempty" json:"duration_ms,omitempty"`       // 成品时长
	Truncated    int    `bson:"truncated,omitempty" json:"truncated,omitempty"`           // 被截断的 cue 数
	Clamped      int    `bson:"clamped,omitempty" json:"clamped,omitempty"`               // 压缩倍率被限制的 cue 数
	Skipped      int    `bson:"skipped,omitempty" json:"skipped,omitempty"`               // 空文本 cue 数
	Overlapping  int    `bson:"overlapping,omitempty" json:"overlapping,omitempty"`       // 与前一条重叠的 cue 数
	ErrorKind    string `bson:"error_kind,omitempty" json:"error_kind,omitempty"`         // parse / synthesis / audio_processing / internal
	ErrorMessage string `bson:"error_message,omitempty" json:"error_message,omitempty"`   // 错误信息
	FailedCue    int    `bson:"failed_cue,omitempty" json:"failed_cue,omitempty"`         // 导致失败的 cue 序号

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	StartedAt   *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Collection 返回集合名称
func (j *Job) Collection() string { return "dubbing_jobs" }

// EnsureIndexes 创建和维护索引
func (j *Job) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(j.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("idx_id").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}
	return mongodb.CreateIndexes(ctx, coll, indexes)
}
