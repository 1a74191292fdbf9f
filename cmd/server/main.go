package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/palemoky/take-six/internal/config"
	"github.com/palemoky/take-six/internal/logger"
	"github.com/palemoky/take-six/internal/server"
	"github.com/palemoky/take-six/internal/server/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	logDir := flag.String("log-dir", "", "日志目录（为空时只输出到终端）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("加载配置文件失败，使用默认配置: %v", err)
		cfg = config.Default()
	}
	if *logDir != "" {
		cfg.Server.LogDir = *logDir
	}

	if err := logger.Init(cfg.Server.LogDir); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer logger.Close()

	var history []storage.HistorySink
	if cfg.Postgres.Enabled() {
		if err := storage.RunMigrations(cfg.Postgres.URL); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		db, err := storage.ConnectPostgres(cfg.Postgres.URL, cfg.Postgres.MaxOpen, cfg.Postgres.MaxIdle)
		if err != nil {
			log.Fatalf("连接 PostgreSQL 失败: %v", err)
		}
		defer db.Close()
		history = append(history, storage.NewPostgresHistory(db))
		log.Println("🗄️ 对局历史将写入 PostgreSQL")
	}

	srv, err := server.NewServer(cfg, history...)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	// 第一次信号优雅关闭，第二次立即关闭
	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("收到关闭信号，等待进行中的对局结束...")
		go func() {
			<-quit
			log.Println("再次收到关闭信号，立即关闭")
			srv.Shutdown()
		}()
		srv.GracefulShutdown(cfg.Game.ShutdownTimeoutDuration())
	}()

	log.Println("🐮 谁是牛头王服务器启动中...")
	if err := srv.Start(); err != nil {
		log.Fatalf("服务器启动失败: %v", err)
	}
	<-srv.Done()
}
