package audit

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/auth"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"

	"go.uber.org/zap"
)

// Entry 一条待记录的审计事件
type Entry struct {
	Action       EventType
	TargetType   string
	TargetID     string
	Organization string
	Meta         map[string]any
	// Actor 为空时从 ctx 中取当前操作者
	Actor *auth.Principal
}

// Recorder 审计记录器。Record 没有返回值：调用方不等待写入，也不会感知写入失败。
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Writer 持久化审计日志
type Writer interface {
	Create(ctx context.Context, log *AuditLog) error
}

// DispatcherConfig 队列配置
type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// Dispatcher 基于有界队列的异步审计记录器，队列满时丢弃并计数
type Dispatcher struct {
	writer    Writer
	cfg       DispatcherConfig
	ch        chan *AuditLog
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	// mu 保证 Close 之后不再有条目进入队列
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	now       func() time.Time
	logger    *zap.Logger
}

// NewDispatcher 创建并启动审计队列
func NewDispatcher(writer Writer, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		writer: writer,
		cfg:    cfg,
		ch:     make(chan *AuditLog, cfg.QueueSize),
		done:   make(chan struct{}),
		now:    time.Now,
		logger: logger.Get(),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Record 在调用时刻捕获操作者快照并入队
func (d *Dispatcher) Record(ctx context.Context, e Entry) {
	if d == nil {
		return
	}
	log := d.build(ctx, e)

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, log, "审计队列已关闭，丢弃日志")
		return
	}
	select {
	case d.ch <- log:
	default:
		d.drop(ctx, log, "审计队列已满，丢弃日志")
	}
}

func (d *Dispatcher) drop(ctx context.Context, log *AuditLog, msg string) {
	d.dropped.Add(1)
	metrics.AuditDroppedTotal.Inc()
	logger.WithContext(ctx).Warn(msg,
		zap.String("action", log.Action),
		zap.String("target_id", log.TargetID),
	)
}

func (d *Dispatcher) build(ctx context.Context, e Entry) *AuditLog {
	log := &AuditLog{
		Action:              string(e.Action),
		Category:            string(GetEventCategory(e.Action)),
		TargetType:          e.TargetType,
		TargetID:            e.TargetID,
		OrganizationProfile: e.Organization,
		CreatedAt:           d.now().UTC(),
	}

	actor := e.Actor
	if actor == nil {
		actor, _ = auth.PrincipalFromContext(ctx)
	}
	if actor != nil {
		log.ActorID = actor.ID
		log.ActorName = actor.Name
		log.ActorEmail = actor.Email
		log.ActorRole = string(actor.Role)
	}

	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			log.Meta = b
		} else {
			logger.WithContext(ctx).Warn("审计元数据序列化失败", zap.String("action", log.Action), zap.Error(err))
		}
	}
	return log
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case log := <-d.ch:
			d.write(log)
		case <-d.done:
			for {
				select {
				case log := <-d.ch:
					d.write(log)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) write(log *AuditLog) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if err := d.writer.Create(ctx, log); err != nil {
		metrics.AuditWriteFailuresTotal.Inc()
		d.logger.Error("审计日志写入失败",
			zap.String("action", log.Action),
			zap.String("target_type", log.TargetType),
			zap.String("target_id", log.TargetID),
			zap.Error(err),
		)
	}
}

// Close 停止接收并写完队列中剩余的日志
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped 被丢弃的条目数
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
