package dubbing

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dubber/internal/model/dubbing"
)

// ErrJobNotFound 任务不存在或不属于该用户
var ErrJobNotFound = errors.New("dubbing job not found")

// JobRepository 配音任务仓库接口
type JobRepository interface {
	Create(ctx context.Context, job *dubbing.Job) error
	FindByID(ctx context.Context, id, userID string) (*dubbing.Job, error)
	ListByUser(ctx context.Context, userID string, page, pageSize int64, status string) ([]*dubbing.Job, int64, error)
	Update(ctx context.Context, job *dubbing.Job) error
	Delete(ctx context.Context, id, userID string) error
	FailUnfinished(ctx context.Context, message string) (int64, error)
}

// Repo 实现 JobRepository
type Repo struct {
	coll *mongo.Collection
}

// NewRepo 创建任务仓库
func NewRepo(db *mongo.Database) *Repo {
	var j dubbing.Job
	return &Repo{coll: db.Collection(j.Collection())}
}

// Create 创建任务
func (r *Repo) Create(ctx context.Context, job *dubbing.Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, job)
	return err
}

// FindByID 根据ID和用户ID查询任务（确保归属）
func (r *Repo) FindByID(ctx context.Context, id, userID string) (*dubbing.Job, error) {
	var job dubbing.Job
	if err := r.coll.FindOne(ctx, ownerFilter(id, userID)).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// ListByUser 查询用户的任务列表（支持状态筛选 + 分页）
func (r *Repo) ListByUser(ctx context.Context, userID string, page, pageSize int64, status string) ([]*dubbing.Job, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter := listFilter(userID, status)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	list := []*dubbing.Job{}
	if err := cur.All(ctx, &list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Update 更新任务
func (r *Repo) Update(ctx context.Context, job *dubbing.Job) error {
	job.UpdatedAt = time.Now()
	_, err := r.coll.UpdateOne(ctx, bson.M{"id": job.ID}, bson.M{"$set": job})
	return err
}

// Delete 删除任务记录
func (r *Repo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.coll.DeleteOne(ctx, ownerFilter(id, userID))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FailUnfinished 将上次进程遗留的未完成任务标记为失败
func (r *Repo) FailUnfinished(ctx context.Context, message string) (int64, error) {
	now := time.Now()
	filter := bson.M{"status": bson.M{"$in": []dubbing.JobStatus{dubbing.JobStatusPending, dubbing.JobStatusRunning}}}
	update := bson.M{"$set": bson.M{
		"status":        dubbing.JobStatusFailed,
		"error_kind":    "internal",
		"error_message": message,
		"updated_at":    now,
		"completed_at":  now,
	}}
	res, err := r.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func ownerFilter(id, userID string) bson.M {
	filter := bson.M{"id": id}
	if userID != "" {
		filter["user_id"] = userID
	}
	return filter
}

func listFilter(userID, status string) bson.M {
	filter := bson.M{}
	if userID != "" {
		filter["user_id"] = userID
	}
	if status != "" {
		filter["status"] = status
	}
	return filter
}

func normalizePage(page, pageSize int64) (int64, int64) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return page, pageSize
}
