// Package bucket 提供 bucket 键解析
//
// 将一个 MeasurementGroup 解析为文档库的 (filter, update) 原子更新对：
// filter 定位（或隐式创建）bucket，update 描述一次原子变更。
//
// 两种模式：
//   - 单主体单例（sepsis/admission 汇总）：filter 只含身份字段，整个结构化
//     载荷追加进命名数组，一个主体上下文只有一个逻辑文档
//   - 按时分桶（其余设备）：filter 额外含 period/day 与容量谓词
//     n_samples < MAX_SAMPLES；bucket 写满后谓词不再命中，下一次 upsert
//     隐式开启同身份的新 bucket，无需显式"关闭"
package bucket

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Bluer01/COPH/internal/factory"
	"github.com/Bluer01/COPH/internal/models"
)

// 心率噪声哨兵值：设备以 255 表示无效读数，分桶前丢弃
const heartRateSentinel = 255

// WriteOp 一次原子 upsert 的 (filter, update) 对
type WriteOp struct {
	Filter bson.M
	Update bson.M
}

// Resolver bucket 键解析器
type Resolver struct {
	kind       string
	maxSamples int
}

// NewResolver 创建解析器
// kind 为设备类别（决定解析模式），maxSamples 为容量上限
func NewResolver(kind string, maxSamples int) *Resolver {
	return &Resolver{kind: kind, maxSamples: maxSamples}
}

// Resolve 解析一个测量组为有序的 (filter, update) 对
//
// 按时分桶模式下每个测量单独生成一对：同一条源记录内不同 type 的测量
// （如心率与步数）各自独立分桶，不合并成一次 update。
func (r *Resolver) Resolve(group models.MeasurementGroup) []WriteOp {
	switch r.kind {
	case factory.KindSepsis:
		return r.resolveSingleton(group, "information")
	case factory.KindAdmission:
		return r.resolveSingleton(group, "admission")
	default:
		return r.resolveTimeBucketed(group)
	}
}

// resolveSingleton 单主体单例模式
// filter 只含 {user_id, device_id, type} 与上下文，无 day/period/容量约束
func (r *Resolver) resolveSingleton(group models.MeasurementGroup, arrayField string) []WriteOp {
	var ops []WriteOp
	for _, m := range group.Measurements {
		filter := bson.M{
			"user_id":   group.UserID,
			"device_id": group.DeviceID,
			"type":      group.Type,
		}
		for k, v := range group.Context {
			filter[k] = v
		}

		ops = append(ops, WriteOp{
			Filter: filter,
			Update: bson.M{
				"$push": bson.M{arrayField: m.Value},
				"$inc":  bson.M{"n_samples": 1},
			},
		})
	}
	return ops
}

// resolveTimeBucketed 按时分桶模式
func (r *Resolver) resolveTimeBucketed(group models.MeasurementGroup) []WriteOp {
	var ops []WriteOp
	for _, m := range group.Measurements {
		if isHeartRateSentinel(m) {
			continue
		}

		typ := m.Name
		if typ == "" {
			typ = group.Type
		}

		filter := bson.M{
			"user_id":   group.UserID,
			"period":    group.Period,
			"device_id": group.DeviceID,
			"n_samples": bson.M{"$lt": r.maxSamples},
			"type":      typ,
			"day":       group.Day,
		}
		for k, v := range group.Context {
			filter[k] = v
		}

		ops = append(ops, WriteOp{
			Filter: filter,
			Update: bson.M{
				"$push": bson.M{"measurements": bson.M{
					"timestamp": m.Timestamp,
					"value":     m.Value,
				}},
				"$min": bson.M{"first": m.Timestamp},
				"$max": bson.M{"last": m.Timestamp},
				"$inc": bson.M{"n_samples": 1},
			},
		})
	}
	return ops
}

// isHeartRateSentinel 心率测量值等于 255 时为设备噪声，对所有上报心率的
// 设备类别统一过滤
func isHeartRateSentinel(m models.Measurement) bool {
	if m.Name != "HEART_RATE" {
		return false
	}
	switch v := m.Value.(type) {
	case string:
		n, err := strconv.Atoi(v)
		return err == nil && n == heartRateSentinel
	case int:
		return v == heartRateSentinel
	case int64:
		return v == heartRateSentinel
	case float64:
		return v == heartRateSentinel
	default:
		return false
	}
}
