package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"crmbackend/api"
	"crmbackend/internal/audit"
	"crmbackend/internal/config"
	"crmbackend/internal/emailai"
	"crmbackend/internal/gates"
	"crmbackend/internal/infra"
	"crmbackend/internal/logger"
	"crmbackend/pkg/aiinterface"

	openaiClient "crmbackend/internal/ai/openai"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer infra.CloseDatabase(db)

	// 4. 执行数据库迁移（根据配置）
	if cfg.Database.AutoMigrate {
		if err := runMigrations(db); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	} else {
		logger.Info("跳过自动迁移（配置已禁用）")
	}

	// 5. 初始化 Redis（可选，功能开关缓存层）
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb, err = infra.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer rdb.Close()
	}

	// 6. 初始化模型客户端
	client, err := openaiClient.NewClient(&aiinterface.ClientConfig{
		APIKey:  cfg.AI.OpenAI.APIKey,
		BaseURL: cfg.AI.OpenAI.BaseURL,
		OrgID:   cfg.AI.OpenAI.OrgID,
		Model:   cfg.AI.OpenAI.Model,
		Timeout: cfg.AI.OpenAI.Timeout,
	})
	if err != nil {
		logger.Fatal("初始化模型客户端失败", zap.Error(err))
	}
	defer client.Close()

	// 7. 组装服务
	gateService := gates.NewService(db, rdb,
		emailai.SystemName,
		emailai.KillSwitchGateKey,
		time.Duration(cfg.Gates.CacheTTL)*time.Second,
	)
	if err := gateService.Warm(context.Background()); err != nil {
		logger.Warn("功能开关预热失败", zap.Error(err))
	}

	auditor := audit.NewDBRecorder(db)
	emailService := emailai.NewService(gateService, client, auditor, nil, cfg)

	// 8. 创建路由与 HTTP 服务器
	router := api.SetupRouter(cfg, emailService, gateService)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	// 9. 优雅关闭
	gracefulShutdown(server)
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		}
	}
}

// resolveEnvPath 从当前工作目录与可执行文件目录向上查找 .env
func resolveEnvPath() string {
	var candidates []string
	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			candidates = append(candidates, filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// runMigrations 执行数据库迁移
func runMigrations(db *gorm.DB) error {
	logger.Info("执行核心表自动迁移...")

	if err := infra.AutoMigrate(db,
		&gates.FeatureGate{},
		&audit.GenerationAuditRecord{},
	); err != nil {
		return err
	}

	logger.Info("核心表迁移完成")
	return nil
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
