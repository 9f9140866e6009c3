// Package store MongoDB 持久化适配器
//
// 承载两份持久化状态：
//   - measurements 集合：bucket 文档，按 (filter, update) 对原子 upsert
//   - mappings 集合：按设备名存储的字段语义映射，合并写入（不整体替换）
package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/config"
	"github.com/Bluer01/COPH/internal/models"
)

// MongoStore MongoDB 文档库
type MongoStore struct {
	client       *mongo.Client
	measurements *mongo.Collection
	mappings     *mongo.Collection
	logger       *zap.Logger
}

// NewMongoStore 连接 MongoDB 并创建文档库适配器
func NewMongoStore(ctx context.Context, cfg *config.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	return &MongoStore{
		client:       client,
		measurements: db.Collection(cfg.Collection),
		mappings:     db.Collection(cfg.MappingsCollection),
		logger:       logger,
	}, nil
}

// Upsert 按 filter 查找或创建 bucket 并应用原子变更
// $push/$inc/$min/$max 在单次调用内不可分割地求值
func (s *MongoStore) Upsert(ctx context.Context, filter, update bson.M) error {
	_, err := s.measurements.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert bucket: %w", err)
	}
	return nil
}

// prescriptionBucket 提取剂量序号用的投影结构
type prescriptionBucket struct {
	// UserID 处方 bucket 的主体编号（写入时上下文覆盖后的 user_id）
	UserID       string `bson:"user_id"`
	Measurements []struct {
		Value bson.M `bson:"value"`
	} `bson:"measurements"`
}

// PrescriptionDosages 读取指定设备已持久化的处方剂量序号
//
// 处方 bucket 的 user_id 是记录内的 subject_id（上下文覆盖写入），与运行
// 配置的用户无关，因此按 device_id + type 检索、按文档的 user_id 归属主体。
// 引擎在处方运行开始前调用一次，预加载进剂量账本。
func (s *MongoStore) PrescriptionDosages(ctx context.Context, deviceID string) ([]models.DosageRecord, error) {
	filter := bson.M{
		"device_id": deviceID,
		"type":      "prescriptions",
	}

	cursor, err := s.measurements.Find(ctx, filter,
		options.Find().SetProjection(bson.M{"user_id": 1, "measurements": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query prescriptions: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.DosageRecord
	for cursor.Next(ctx) {
		var doc prescriptionBucket
		if err := cursor.Decode(&doc); err != nil {
			s.logger.Warn("Failed to decode prescription bucket", zap.Error(err))
			continue
		}

		for _, m := range doc.Measurements {
			day, _ := m.Value["day"].(string)
			drug, _ := m.Value["drug"].(string)
			num, ok := asInt(m.Value["drug_dosage_num"])
			if day == "" || drug == "" || !ok {
				continue
			}
			records = append(records, models.DosageRecord{
				Subject: doc.UserID,
				Day:     day,
				Drug:    drug,
				Num:     num,
			})
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prescriptions: %w", err)
	}

	return records, nil
}

// mappingDoc mappings 集合的文档结构（_id 为设备名）
type mappingDoc struct {
	Mappings map[string]models.FieldMapping `bson:"mappings"`
}

// GetMappings 按设备名读取已持久化的字段映射
func (s *MongoStore) GetMappings(ctx context.Context, device string) (map[string]models.FieldMapping, error) {
	var doc mappingDoc
	err := s.mappings.FindOne(ctx, bson.M{"_id": device}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return map[string]models.FieldMapping{}, nil
		}
		return nil, fmt.Errorf("failed to query mappings for device %s: %w", device, err)
	}

	if doc.Mappings == nil {
		doc.Mappings = map[string]models.FieldMapping{}
	}
	return doc.Mappings, nil
}

// SaveMappings 按设备名合并写入字段映射
// 逐字段 $set，已存在的其它字段保持不变
func (s *MongoStore) SaveMappings(ctx context.Context, device string, mappings map[string]models.FieldMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	set := bson.M{}
	for field, m := range mappings {
		set["mappings."+field] = m
	}

	result, err := s.mappings.UpdateOne(ctx,
		bson.M{"_id": device},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save mappings for device %s: %w", device, err)
	}

	if result.UpsertedID != nil {
		s.logger.Info("Created new mappings document", zap.String("device", device))
	} else {
		s.logger.Info("Merged mappings into existing document", zap.String("device", device))
	}
	return nil
}

// Close 关闭 MongoDB 连接
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
