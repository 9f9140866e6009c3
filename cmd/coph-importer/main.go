package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/config"
	"github.com/Bluer01/COPH/internal/logger"
	"github.com/Bluer01/COPH/internal/service"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file path")
		file         = flag.String("file", "", "input file to import (csv/json/xlsx)")
		username     = flag.String("user", "", "monitoring device user's name")
		device       = flag.String("device", "", "monitoring device name")
		period       = flag.String("period", "", "fallback sample period label")
		maxSamples   = flag.Int("max-samples", 0, "maximum samples per bucket document")
		database     = flag.String("database", "", "database to upload to")
		collection   = flag.String("collection", "", "collection to upload to")
		preview      = flag.Bool("preview", false, "render filter/update pairs instead of uploading")
		previewLimit = flag.Int("preview-limit", 0, "maximum pairs to render in preview mode")
		mapFields    = flag.Bool("map", false, "run the interactive semantic mapping session")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 命令行参数覆盖配置文件与环境变量
	if *file != "" {
		cfg.Importer.File = *file
	}
	if *username != "" {
		cfg.Importer.Username = *username
	}
	if *device != "" {
		cfg.Importer.Device = *device
	}
	if *period != "" {
		cfg.Importer.Period = *period
	}
	if *maxSamples > 0 {
		cfg.Importer.MaxSamples = *maxSamples
	}
	if *database != "" {
		cfg.Mongo.Database = *database
	}
	if *collection != "" {
		cfg.Mongo.Collection = *collection
	}
	if *preview {
		cfg.Importer.Preview = true
	}
	if *previewLimit > 0 {
		cfg.Importer.PreviewLimit = *previewLimit
	}
	if *mapFields {
		cfg.Importer.Mapping = true
	}

	if cfg.Importer.File == "" || cfg.Importer.Device == "" || cfg.Importer.Username == "" {
		log.Fatal("Missing required parameters: -file, -device and -user must be provided")
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "coph-importer")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting coph-importer",
		zap.String("file", cfg.Importer.File),
		zap.String("device", cfg.Importer.Device),
		zap.Int("max_samples", cfg.Importer.MaxSamples),
		zap.Bool("preview", cfg.Importer.Preview),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	importerService, err := service.NewImporterService(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create importer service", zap.Error(err))
	}

	runErr := importerService.Run(ctx)

	if err := importerService.Stop(context.Background()); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	if runErr != nil {
		zapLogger.Error("Import run failed", zap.Error(runErr))
		os.Exit(1)
	}

	zapLogger.Info("Service stopped")
}
