// Package service 导入服务装配
package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/bucket"
	"github.com/Bluer01/COPH/internal/config"
	"github.com/Bluer01/COPH/internal/engine"
	"github.com/Bluer01/COPH/internal/events"
	"github.com/Bluer01/COPH/internal/factory"
	"github.com/Bluer01/COPH/internal/mapping"
	"github.com/Bluer01/COPH/internal/models"
	"github.com/Bluer01/COPH/internal/ontology"
	"github.com/Bluer01/COPH/internal/source"
	"github.com/Bluer01/COPH/internal/store"
)

// ImporterService 导入服务
//
// 装配文档库、本体库、事件流与核心流水线，驱动一次完整的导入运行。
type ImporterService struct {
	config      *config.Config
	logger      *zap.Logger
	store       *store.MongoStore
	ontoDB      *sql.DB
	redisClient *redis.Client
	publisher   *events.Publisher

	// Out preview 模式的输出端，默认标准输出
	Out io.Writer
	// Prompter 映射会话的应答器，默认交互终端
	Prompter mapping.Prompter
}

// NewImporterService 创建导入服务
//
// MongoDB 为必需依赖；本体库仅在启用映射会话时连接；Redis 事件流不可用
// 时降级为只记日志，不阻止导入。
func NewImporterService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ImporterService, error) {
	mongoStore, err := store.NewMongoStore(ctx, &cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}

	s := &ImporterService{
		config:   cfg,
		logger:   logger,
		store:    mongoStore,
		Out:      os.Stdout,
		Prompter: mapping.NewTerminalPrompter(os.Stdin, os.Stdout),
	}

	if cfg.Importer.Mapping {
		db, err := sql.Open("postgres", cfg.Ontology.DB.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open ontology database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping ontology database: %w", err)
		}
		s.ontoDB = db
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unavailable, run events will not be published", zap.Error(err))
			_ = client.Close()
		} else {
			s.redisClient = client
			s.publisher = events.NewPublisher(client, cfg.Redis.Stream, logger)
		}
	}

	return s, nil
}

// Run 执行一次导入运行
func (s *ImporterService) Run(ctx context.Context) error {
	cfg := s.config.Importer
	runID := uuid.NewString()
	logger := s.logger.With(
		zap.String("run_id", runID),
		zap.String("device", cfg.Device),
	)

	deviceID, ok := s.config.ResolveDevice(cfg.Device)
	if !ok {
		return &factory.UnsupportedDeviceError{Kind: cfg.Device}
	}
	userID := s.config.ResolveUser(strings.ToLower(cfg.Username))

	records, err := source.Parse(cfg.File)
	if err != nil {
		return fmt.Errorf("failed to parse input file: %w", err)
	}
	logger.Info("Parsed input file",
		zap.String("file", cfg.File),
		zap.Int("records", len(records)),
	)

	s.publish(ctx, events.RunEvent{
		RunID:   runID,
		Event:   events.EventRunStarted,
		Device:  cfg.Device,
		User:    userID,
		Records: len(records),
	})

	sampleFactory, err := factory.New(cfg.Device, userID, deviceID, cfg.Period, logger)
	if err != nil {
		return err
	}
	resolver := bucket.NewResolver(cfg.Device, cfg.MaxSamples)
	eng := engine.New(sampleFactory, resolver, s.store, userID, deviceID, logger)

	ops, err := eng.Prepare(ctx, records)
	if err != nil {
		return err
	}

	if cfg.Preview {
		if err := eng.Preview(s.Out, ops, cfg.PreviewLimit); err != nil {
			return fmt.Errorf("failed to render preview: %w", err)
		}
	} else {
		result := eng.Commit(ctx, ops)
		s.publish(ctx, events.RunEvent{
			RunID:   runID,
			Event:   events.EventRunCommitted,
			Device:  cfg.Device,
			User:    userID,
			Records: len(records),
			Applied: result.Applied,
			Failed:  result.Failed,
		})
	}

	if cfg.Mapping && len(records) > 0 {
		if err := s.runMappingSession(ctx, runID, cfg.Device, userID, records[0]); err != nil {
			return fmt.Errorf("mapping session failed: %w", err)
		}
	}

	logger.Info("Import run finished")
	return nil
}

// runMappingSession 交互式语义映射会话
//
// 以首条记录的字段名作为本设备的字段全集样本。
func (s *ImporterService) runMappingSession(ctx context.Context, runID, device, userID string, sample models.Record) error {
	fields := make([]string, 0, len(sample))
	for field := range sample {
		if field == "" {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	ontoRepo := ontology.NewRepository(s.ontoDB, s.config.Ontology.RootIRI, s.logger)
	olsClient := ontology.NewOLSClient(s.config.Ontology.OLSBaseURL, s.logger)
	resolver := mapping.NewResolver(s.store, ontoRepo, olsClient, s.Prompter, s.logger)

	resolutions, err := resolver.Resolve(ctx, device, fields)
	if err != nil {
		return err
	}

	merged := mapping.Merged(resolutions)
	if err := s.store.SaveMappings(ctx, device, merged); err != nil {
		return err
	}

	s.publish(ctx, events.RunEvent{
		RunID:  runID,
		Event:  events.EventMappingsSaved,
		Device: device,
		User:   userID,
		Fields: len(merged),
	})
	return nil
}

func (s *ImporterService) publish(ctx context.Context, event events.RunEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish run event",
			zap.String("event", event.Event),
			zap.Error(err),
		)
	}
}

// Stop 关闭外部连接
func (s *ImporterService) Stop(ctx context.Context) error {
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Error closing Redis client", zap.Error(err))
		}
	}

	if s.ontoDB != nil {
		if err := s.ontoDB.Close(); err != nil {
			s.logger.Error("Error closing ontology database", zap.Error(err))
		}
	}

	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			s.logger.Error("Error closing document store", zap.Error(err))
		}
	}

	return nil
}
