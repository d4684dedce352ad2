package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Model 需要管理索引的集合模型
type Model interface {
	// Collection 返回集合名称
	Collection() string

	// EnsureIndexes 创建和维护索引，启动时调用，需幂等
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}

// EnsureAllIndexes 依次为模型创建索引，遇到错误立即返回
func EnsureAllIndexes(ctx context.Context, db *mongo.Database, models ...Model) error {
	for _, model := range models {
		if err := model.EnsureIndexes(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// CreateIndexes 批量创建索引，indexes 为空时不访问数据库
func CreateIndexes(ctx context.Context, coll *mongo.Collection, indexes []mongo.IndexModel) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
