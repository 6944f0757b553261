package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"
	"github.com/Locquiano101/CnscCodexMain-sub000/internal/metrics"

	"go.uber.org/zap"
)

// Message 发给组织全体成员的通知
type Message struct {
	Organization string `json:"organization"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
}

// Dispatcher 单向投递：调用方不等待结果，失败只记录日志
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// Deliverer 解析接收人并调用 Notifier，内存队列与 asynq 任务共用
type Deliverer struct {
	resolver RecipientResolver
	notifier Notifier
}

// NewDeliverer 创建投递器
func NewDeliverer(resolver RecipientResolver, notifier Notifier) *Deliverer {
	return &Deliverer{resolver: resolver, notifier: notifier}
}

// Deliver 同步投递一条消息
func (d *Deliverer) Deliver(ctx context.Context, msg Message) error {
	recipients, err := d.resolver.Recipients(ctx, msg.Organization)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		metrics.NotificationsTotal.WithLabelValues("no_recipients").Inc()
		return nil
	}

	err = d.notifier.Send(ctx, &Notification{To: recipients, Subject: msg.Subject, Body: msg.Body})
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("发送通知失败: %w", err)
	}
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

// AsyncDispatcherConfig 内存队列配置
type AsyncDispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// AsyncDispatcher 进程内有界队列 + 工作协程
type AsyncDispatcher struct {
	deliverer *Deliverer
	cfg       AsyncDispatcherConfig
	queue     chan Message
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// NewAsyncDispatcher 创建并启动通知队列
func NewAsyncDispatcher(deliverer *Deliverer, cfg AsyncDispatcherConfig) *AsyncDispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}

	d := &AsyncDispatcher{
		deliverer: deliverer,
		cfg:       cfg,
		queue:     make(chan Message, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		logger:    logger.Get(),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// Dispatch 入队，队列已满时丢弃
func (d *AsyncDispatcher) Dispatch(ctx context.Context, msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reason := "通知队列已关闭，丢弃消息"
	if !d.closed {
		select {
		case d.queue <- msg:
			return
		default:
			reason = "通知队列已满，丢弃消息"
		}
	}
	metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
	logger.WithContext(ctx).Warn(reason,
		zap.String("organization", msg.Organization),
		zap.String("subject", msg.Subject),
	)
}

func (d *AsyncDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case msg := <-d.queue:
			d.deliver(id, msg)
		case <-d.stopCh:
			for {
				select {
				case msg := <-d.queue:
					d.deliver(id, msg)
				default:
					return
				}
			}
		}
	}
}

func (d *AsyncDispatcher) deliver(id int, msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.deliverer.Deliver(ctx, msg); err != nil {
		d.logger.Warn("通知投递失败",
			zap.Int("worker", id),
			zap.String("organization", msg.Organization),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}

// Close 停止接收并投递完剩余消息
func (d *AsyncDispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.stopCh)
		d.wg.Wait()
	})
}
