// Package events 运行事件发布
//
// 导入运行的关键节点（开始、提交完成、映射保存）发布到 Redis Streams，
// 供下游服务（分析、告警）消费。事件发布失败只记日志，不影响导入本身。
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// 事件类型
const (
	EventRunStarted    = "run_started"
	EventRunCommitted  = "run_committed"
	EventMappingsSaved = "mappings_saved"
)

// RunEvent 一次导入运行的事件
type RunEvent struct {
	RunID   string `json:"run_id"`
	Event   string `json:"event"`
	Device  string `json:"device"`
	User    string `json:"user"`
	Records int    `json:"records,omitempty"`
	Applied int    `json:"applied,omitempty"`
	Failed  int    `json:"failed,omitempty"`
	Fields  int    `json:"fields,omitempty"`
}

// Publisher 运行事件发布器
type Publisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewPublisher 创建发布器
func NewPublisher(client *redis.Client, stream string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Publish 发布一条运行事件（JSON 载荷 + 发布时间戳）
func (p *Publisher) Publish(ctx context.Context, event RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return err
	}

	p.logger.Debug("Published run event",
		zap.String("stream", p.stream),
		zap.String("message_id", id),
		zap.String("event", event.Event),
	)
	return nil
}
