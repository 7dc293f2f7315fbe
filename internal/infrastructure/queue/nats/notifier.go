package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/document-intake/internal/core/domain"
	"github.com/kirillkom/document-intake/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "intake.routed"

type publisher interface {
	Publish(subject string, data []byte) error
}

// Notifier publishes routed documents to NATS on
// <prefix>.<category-slug>, e.g. intake.routed.safety_circular.
type Notifier struct {
	conn     *nats.Conn
	pub      publisher
	prefix   string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subjectPrefix string) (*Notifier, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

func NewWithOptions(url, subjectPrefix string, options Options) (*Notifier, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	n := newNotifier(conn, subjectPrefix, options.ResilienceExecutor)
	n.conn = conn
	return n, nil
}

func newNotifier(pub publisher, subjectPrefix string, executor *resilience.Executor) *Notifier {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Notifier{pub: pub, prefix: prefix, executor: executor}
}

func (n *Notifier) Close() {
	if n.conn != nil {
		if err := n.conn.FlushTimeout(5 * time.Second); err != nil {
			slog.Warn("nats.flush.failed", "error", err)
		}
		n.conn.Close()
	}
}

func (n *Notifier) Subject(category string) string {
	return n.prefix + "." + CategorySlug(category)
}

func (n *Notifier) NotifyRouted(ctx context.Context, msg domain.RoutingNotification) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal routing notification: %w", err)
	}
	subject := n.Subject(string(msg.Category))

	call := func(_ context.Context) error {
		if err := n.pub.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if n.executor != nil {
		err = n.executor.Do(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapPublishError(subject, err)
	}
	return nil
}

// CategorySlug lowercases the category and collapses anything that is not a
// letter or digit into single underscores. NATS tokens cannot contain spaces
// or dots.
func CategorySlug(category string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(category)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "unclassified"
	}
	return b.String()
}
