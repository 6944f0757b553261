package notification

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"go.uber.org/zap"
)

// Recipient 通知接收人
type Recipient struct {
	UserID string
	Name   string
	Email  string
}

// Notification 通知消息
type Notification struct {
	To      []Recipient
	Subject string
	Body    string
}

// Notifier 通知器接口，尽力投递
type Notifier interface {
	Send(ctx context.Context, n *Notification) error
}

// EmailConfig 邮件配置
type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Username string
	Password string
	From     string
	FromName string
}

// EmailNotifier 邮件通知器
type EmailNotifier struct {
	config   EmailConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier 创建邮件通知器
func NewEmailNotifier(config EmailConfig) *EmailNotifier {
	return &EmailNotifier{config: config, sendMail: smtp.SendMail}
}

// Send 逐个收件人发送，单个失败不影响其他收件人
func (e *EmailNotifier) Send(ctx context.Context, n *Notification) error {
	if e.config.SMTPHost == "" {
		return fmt.Errorf("邮件未配置")
	}

	var auth smtp.Auth
	if e.config.Username != "" {
		auth = smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", e.config.SMTPHost, e.config.SMTPPort)

	var errs []error
	for _, r := range n.To {
		if r.Email == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		message := fmt.Sprintf(
			"From: %s <%s>\r\n"+
				"To: %s\r\n"+
				"Subject: %s\r\n"+
				"MIME-Version: 1.0\r\n"+
				"Content-Type: text/plain; charset=UTF-8\r\n"+
				"\r\n"+
				"%s",
			e.config.FromName,
			e.config.From,
			r.Email,
			n.Subject,
			n.Body,
		)
		if err := e.sendMail(addr, auth, e.config.From, []string{r.Email}, []byte(message)); err != nil {
			errs = append(errs, fmt.Errorf("发送邮件到 %s 失败: %w", r.Email, err))
		}
	}
	return errors.Join(errs...)
}

// LogNotifier 仅写日志的通知器，开发环境默认使用
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logger.Get()}
}

// Send 记录通知内容
func (l *LogNotifier) Send(ctx context.Context, n *Notification) error {
	emails := make([]string, 0, len(n.To))
	for _, r := range n.To {
		emails = append(emails, r.Email)
	}
	l.logger.Info("通知",
		zap.String("subject", n.Subject),
		zap.String("to", strings.Join(emails, ",")),
		zap.String("body", n.Body),
	)
	return nil
}
