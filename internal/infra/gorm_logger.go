package infra

import (
	"context"
	"errors"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// GormLogger 把 GORM 日志转到全局 zap，并带上请求的 trace_id/actor_id
type GormLogger struct {
	level         gormLogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger 创建 GORM 日志适配器
func NewGormLogger(level gormLogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{level: level, slowThreshold: slowThreshold}
}

// LogMode 实现 gormLogger.Interface
func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Info {
		logger.WithContext(ctx).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Warn {
		logger.WithContext(ctx).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormLogger.Error {
		logger.WithContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace 记录 SQL。未找到记录和唯一键冲突属于业务分支（404、409、提交重试），不按错误输出。
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := logger.WithContext(ctx).With(
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	)

	switch {
	case err != nil && !expectedQueryError(err):
		log.Error("SQL 执行错误", zap.Error(err))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		log.Warn("SQL 慢查询", zap.Duration("threshold", l.slowThreshold))
	case l.level >= gormLogger.Info:
		log.Debug("SQL 执行")
	}
}

func expectedQueryError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)
}
