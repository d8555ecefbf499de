package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"

	"github.com/google/uuid"
)

// 单次 SMTP 会话的上限，调用方未设置截止时间时生效
const smtpSessionTimeout = 30 * time.Second

// EmailDispatcher 邮件投递接口，尽力而为，不保证送达
type EmailDispatcher interface {
	Send(ctx context.Context, to, subject, html string) error
}

// EmailService SMTP 邮件发送服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// SetConfig 更新运行时邮件配置
func (s *EmailService) SetConfig(cfg *config.EmailConfig) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
}

// Send 发送 HTML 邮件
func (s *EmailService) Send(ctx context.Context, toEmail, subject, html string) error {
	return s.sendEmail(ctx, toEmail, subject, html, "text/html")
}

// SendText 发送纯文本邮件
func (s *EmailService) SendText(ctx context.Context, toEmail, subject, body string) error {
	return s.sendEmail(ctx, toEmail, subject, body, "text/plain")
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, body, contentType string) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return ErrEmailServiceDisabled
	}
	if s.cfg.Host == "" || s.cfg.Port == 0 || s.cfg.From == "" {
		return ErrEmailServiceNotConfigured
	}
	if _, err := mail.ParseAddress(toEmail); err != nil {
		return ErrInvalidEmail
	}

	from := buildFromAddress(s.cfg.From, s.cfg.FromName)
	msg := buildEmailMessage(from, toEmail, subject, body, contentType)
	return normalizeEmailSendError(s.deliver(ctx, toEmail, []byte(msg)))
}

// deliver 建立 SMTP 会话并投递单封邮件
// use_ssl 为隐式 TLS（通常 465），use_tls 为明文连接后 STARTTLS（通常 587）
func (s *EmailService) deliver(ctx context.Context, to string, msg []byte) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, smtpSessionTimeout)
		defer cancel()
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	dialer := &net.Dialer{}
	var conn net.Conn
	var err error
	if s.cfg.UseSSL {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if s.cfg.UseTLS && !s.cfg.UseSSL {
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}
	if s.cfg.Username != "" || s.cfg.Password != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildFromAddress(from, name string) string {
	if strings.TrimSpace(name) == "" {
		return from
	}
	encoded := mime.QEncoding.Encode("UTF-8", name)
	return (&mail.Address{Name: encoded, Address: from}).String()
}

func buildEmailMessage(from, to, subject, body, contentType string) string {
	if contentType == "" {
		contentType = "text/plain"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), messageIDDomain(from))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s; charset=UTF-8\r\n", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.String()
}

func messageIDDomain(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
	}
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		return strings.TrimSuffix(from[at+1:], ">")
	}
	return "localhost"
}

func normalizeEmailSendError(err error) error {
	if err == nil {
		return nil
	}
	if isEmailRecipientRejected(err) {
		return fmt.Errorf("%w: %v", ErrEmailRecipientRejected, err)
	}
	return err
}

// 550/551/553 为收件人永久拒收；其余 5xx 多为认证或策略问题，不视为地址错误
var recipientRejectCodes = map[int]struct{}{550: {}, 551: {}, 553: {}}

var recipientRejectKeywords = []string{
	"no such recipient",
	"no such user",
	"recipient not found",
	"recipient address rejected",
	"invalid recipient",
	"user unknown",
	"unknown user",
	"unknown mailbox",
	"mailbox unavailable",
}

func isEmailRecipientRejected(err error) bool {
	if err == nil {
		return false
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		if _, ok := recipientRejectCodes[protoErr.Code]; ok {
			return true
		}
	}
	message := strings.ToLower(err.Error())
	for _, keyword := range recipientRejectKeywords {
		if strings.Contains(message, keyword) {
			return true
		}
	}
	return false
}

// QueuedEmailDispatcher 通过异步队列投递邮件，队列不可用时同步发送
type QueuedEmailDispatcher struct {
	queue  *queue.Client
	direct EmailDispatcher
}

// NewQueuedEmailDispatcher 创建队列邮件投递器
func NewQueuedEmailDispatcher(queueClient *queue.Client, direct EmailDispatcher) *QueuedEmailDispatcher {
	return &QueuedEmailDispatcher{queue: queueClient, direct: direct}
}

// Send 入队邮件任务
func (d *QueuedEmailDispatcher) Send(ctx context.Context, to, subject, html string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return ErrInvalidEmail
	}
	err := d.queue.EnqueueEmail(queue.EmailPayload{To: to, Subject: subject, HTML: html})
	if err == nil {
		return nil
	}
	if !errors.Is(err, queue.ErrQueueDisabled) {
		logger.Warnw("email_enqueue_failed_fallback_direct", "to", to, "error", err)
	}
	if d.direct == nil {
		return err
	}
	return d.direct.Send(ctx, to, subject, html)
}
