package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Performile1/Performile-Version-1-sub001/internal/app"
	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"

	"github.com/gin-gonic/gin"
)

const minJWTSecretLength = 32

// 明显的占位密钥，生产环境拒绝启动
var placeholderSecretMarkers = []string{"change-me", "change-in-production", "your-secret-key"}

func main() {
	modeFlag := flag.String("mode", app.ModeAll, "启动模式: all (默认), api, worker")
	flag.Parse()

	mode, err := app.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Printf("performile webhook engine starting, mode=%s\n", mode)

	if err := run(mode); err != nil {
		logger.StdLogger().Fatalf("服务运行失败: %v", err)
	}
}

func run(mode string) error {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	release := cfg.Server.Mode == "release"

	if err := checkJWTSecret(cfg.Ops.JWTSecret); err != nil {
		if release {
			return err
		}
		logger.Warnw("ops_jwt_secret_weak", "error", err)
	}

	pool := cfg.Database.Pool
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           pool.MaxOpenConns,
		MaxIdleConns:           pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		return fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer func() {
		_ = models.CloseDB()
	}()
	if err := models.AutoMigrate(); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	// 生产环境必须显式提供默认运维密码
	switch {
	case release && strings.TrimSpace(cfg.Ops.DefaultPassword) == "":
		logger.Warnw("ops_default_operator_skipped", "reason", "ops.default_password empty")
	default:
		if err := models.InitDefaultOperator(cfg.Ops.DefaultUsername, cfg.Ops.DefaultPassword); err != nil {
			logger.Warnw("ops_default_operator_init_failed", "error", err)
		}
	}

	if release {
		gin.SetMode(gin.ReleaseMode)
	}
	return app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
	})
}

func checkJWTSecret(secret string) error {
	if len(secret) < minJWTSecretLength {
		return fmt.Errorf("ops jwt secret shorter than %d bytes", minJWTSecretLength)
	}
	lower := strings.ToLower(secret)
	for _, marker := range placeholderSecretMarkers {
		if strings.Contains(lower, marker) {
			return errors.New("ops jwt secret still uses a placeholder value")
		}
	}
	return nil
}
