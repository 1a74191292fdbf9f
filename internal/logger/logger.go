package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"
)

const (
	logFileName = "server.log"
	maxLogSize  = 10 * 1024 * 1024
)

var (
	logFile *os.File
	logPath string
)

// Init 初始化服务端日志文件，日志同时写入标准输出
// dir 为空时只输出到标准输出。
func Init(dir string) error {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	logPath = ""
	if dir == "" {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath = filepath.Join(dir, logFileName)

	// 超过 10MB 先轮转
	if info, err := os.Stat(logPath); err == nil && info.Size() > maxLogSize {
		backupPath := filepath.Join(dir, fmt.Sprintf("%s.%d", logFileName, time.Now().Unix()))
		_ = os.Rename(logPath, backupPath)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	LogInfo("Logger initialized, log file: %s", logPath)
	return nil
}

// Close 关闭日志文件
func Close() {
	if logFile != nil {
		log.SetOutput(os.Stderr)
		_ = logFile.Close()
		logFile = nil
	}
}

// LogInfo logs an info message
func LogInfo(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

// LogError logs an error message
func LogError(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}

// LogPanic logs a panic with stack trace
func LogPanic(r any) {
	log.Printf("[PANIC] %v\n%s", r, debug.Stack())
}

// GetLogPath 当前日志文件路径，未写文件时为空
func GetLogPath() string {
	return logPath
}
