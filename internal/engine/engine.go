// Package engine 分桶引擎
//
// 驱动整条记录序列：前置校验 → 样本工厂 → bucket 键解析，产出保持输入顺序
// 的 (filter, update) 对序列；再以两种模式消费同一序列：
//   - commit：逐对阻塞式原子 upsert，单对失败记日志不中断
//   - preview：渲染有界前缀供检查，不落库（用于提交整轮前验证转换/映射）
//
// 处理严格串行：剂量序号推导与运行中的极值都依赖记录顺序与进程内状态。
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/bucket"
	"github.com/Bluer01/COPH/internal/factory"
	"github.com/Bluer01/COPH/internal/models"
)

// DocumentStore 引擎依赖的文档库能力
type DocumentStore interface {
	// Upsert 按 filter 查找或创建并原子应用 update
	Upsert(ctx context.Context, filter, update bson.M) error
	// PrescriptionDosages 读取指定设备已持久化的处方剂量序号（按主体归属）
	PrescriptionDosages(ctx context.Context, deviceID string) ([]models.DosageRecord, error)
}

// CommitResult 一次提交的统计
type CommitResult struct {
	Applied int
	Failed  int
}

// Engine 分桶引擎
type Engine struct {
	factory  *factory.Factory
	resolver *bucket.Resolver
	store    DocumentStore
	userID   string
	deviceID string
	logger   *zap.Logger
}

// New 创建分桶引擎
func New(f *factory.Factory, r *bucket.Resolver, store DocumentStore,
	userID, deviceID string, logger *zap.Logger) *Engine {
	return &Engine{
		factory:  f,
		resolver: r,
		store:    store,
		userID:   userID,
		deviceID: deviceID,
		logger:   logger,
	}
}

// Prepare 处理整条记录序列，产出保持输入顺序的 (filter, update) 对
//
// 处方运行先把已持久化的剂量序号预加载进账本；单条记录转换失败记日志
// 后跳过，不中断后续记录。
func (e *Engine) Prepare(ctx context.Context, records []models.Record) ([]bucket.WriteOp, error) {
	if e.factory.Kind() == factory.KindPrescriptions {
		dosages, err := e.store.PrescriptionDosages(ctx, e.deviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to preload dosage numbers: %w", err)
		}
		e.factory.SeedDosages(dosages)
		e.logger.Info("Preloaded persisted dosage numbers", zap.Int("count", len(dosages)))
	}

	var ops []bucket.WriteOp
	skipped := 0
	for i, record := range records {
		if !e.factory.Validate(record) {
			skipped++
			continue
		}

		groups, err := e.factory.CreateSamples(record)
		if err != nil {
			e.logger.Warn("Failed to transform record",
				zap.Int("record_index", i),
				zap.Error(err),
			)
			skipped++
			continue
		}

		for _, group := range groups {
			ops = append(ops, e.resolver.Resolve(group)...)
		}
	}

	e.logger.Info("Prepared bucket operations",
		zap.String("user_id", e.userID),
		zap.Int("records", len(records)),
		zap.Int("skipped", skipped),
		zap.Int("operations", len(ops)),
	)
	return ops, nil
}

// Commit 逐对应用原子 upsert
//
// 每次 upsert 阻塞至完成再继续；单对失败记日志后继续下一对（该次 bucket
// 变更丢失，键幂等故外部重试安全）。
func (e *Engine) Commit(ctx context.Context, ops []bucket.WriteOp) CommitResult {
	var result CommitResult
	for i, op := range ops {
		if err := e.store.Upsert(ctx, op.Filter, op.Update); err != nil {
			e.logger.Error("Failed to upsert bucket",
				zap.Int("op_index", i),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		result.Applied++
	}

	e.logger.Info("Commit finished",
		zap.Int("applied", result.Applied),
		zap.Int("failed", result.Failed),
	)
	return result
}

// Preview 渲染前 limit 对供检查；limit <= 0 时渲染全部
func (e *Engine) Preview(w io.Writer, ops []bucket.WriteOp, limit int) error {
	if limit > 0 && limit < len(ops) {
		ops = ops[:limit]
	}

	for _, op := range ops {
		filter, err := json.Marshal(op.Filter)
		if err != nil {
			return fmt.Errorf("failed to render filter: %w", err)
		}
		update, err := json.Marshal(op.Update)
		if err != nil {
			return fmt.Errorf("failed to render update: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n", filter, update); err != nil {
			return err
		}
	}
	return nil
}
