package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger 全局日志实例
	Logger *logrus.Logger
	// currentLogFile 当前日志文件路径
	currentLogFile string
	// currentDay 当前日志文件所属交易日（yyyy-mm-dd，按天切换时使用）
	currentDay string
	// savedConfig 保存的日志配置（换日切换时复用）
	savedConfig Config
	// logMu 日志文件切换锁
	logMu sync.Mutex
)

// Config 日志配置
type Config struct {
	Level      string // 日志级别: debug, info, warn, error
	OutputFile string // 日志文件路径（可选，为空则只输出到控制台）
	MaxSize    int    // 单个日志文件最大大小（MB）
	MaxBackups int    // 保留的旧日志文件数量
	MaxAge     int    // 保留旧日志文件的天数
	Compress   bool   // 是否压缩旧日志文件
	LogByDay   bool   // 是否按交易日命名日志文件（bot_2026-08-21.log）
}

// dayFileName 按日期生成日志文件名：logs/bot.log -> logs/bot_2026-08-21.log
func dayFileName(basePath, day string) string {
	dir := filepath.Dir(basePath)
	base := filepath.Base(basePath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	if dir == "." || dir == "" {
		return fmt.Sprintf("%s_%s%s", name, day, ext)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, day, ext))
}

// Init 初始化日志系统
func Init(config Config) error {
	logMu.Lock()
	defer logMu.Unlock()
	return initLocked(config, time.Now())
}

// InitDefault 使用默认配置初始化（info 级别，只输出控制台）
func InitDefault() error {
	return Init(Config{Level: "info"})
}

func initLocked(config Config, now time.Time) error {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "06-01-02 15:04:05",
		ForceColors:     true,
	}
	logger.SetFormatter(formatter)

	writers := []io.Writer{os.Stdout}

	if config.OutputFile != "" {
		savedConfig = config

		logFilePath := config.OutputFile
		if config.LogByDay {
			currentDay = now.Format("2006-01-02")
			logFilePath = dayFileName(config.OutputFile, currentDay)
		}

		if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
			return err
		}

		writers = append(writers, &lumberjack.Logger{
			Filename:   logFilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
		currentLogFile = logFilePath
	}

	multiWriter := io.MultiWriter(writers...)
	logger.SetOutput(multiWriter)

	// 同时设置全局 logrus 输出，保证各包里 logrus.WithField 创建的 logger 也写入文件
	logrus.SetOutput(multiWriter)
	logrus.SetLevel(level)
	logrus.SetFormatter(formatter)

	Logger = logger
	return nil
}

// RotateForDay 换日时切换日志文件（RunLoop 在锚点换日后调用）
func RotateForDay(now time.Time) error {
	logMu.Lock()
	defer logMu.Unlock()

	if !savedConfig.LogByDay || savedConfig.OutputFile == "" {
		return nil
	}
	day := now.Format("2006-01-02")
	if day == currentDay {
		return nil
	}

	old := currentLogFile
	if err := initLocked(savedConfig, now); err != nil {
		return err
	}
	if old != "" {
		logrus.Infof("日志文件切换: %s -> %s", old, currentLogFile)
	}
	return nil
}

// Debugf 包级便捷方法
func Debugf(format string, args ...interface{}) { get().Debugf(format, args...) }

// Infof 包级便捷方法
func Infof(format string, args ...interface{}) { get().Infof(format, args...) }

// Warnf 包级便捷方法
func Warnf(format string, args ...interface{}) { get().Warnf(format, args...) }

// Errorf 包级便捷方法
func Errorf(format string, args ...interface{}) { get().Errorf(format, args...) }

// Info 包级便捷方法
func Info(args ...interface{}) { get().Info(args...) }

func get() *logrus.Logger {
	if Logger != nil {
		return Logger
	}
	return logrus.StandardLogger()
}
