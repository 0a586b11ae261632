package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

const (
	SubjectInboxReceived  = "inbox.received"
	SubjectClaimConverted = "claims.converted"

	workerQueueGroup = "inbox-analysis"
)

// Queue publishes domain events as JSON messages and feeds inbox.received to a worker queue group.
type Queue struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	SubjectPrefix        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string, options Options) (*Queue, error) {
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
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("claims-intake"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		prefix:   options.SubjectPrefix,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) subject(name string) string {
	return subjectFor(q.prefix, name)
}

func subjectFor(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (q *Queue) PublishInboxReceived(ctx context.Context, event domain.InboxReceived) error {
	return q.publish(ctx, q.subject(SubjectInboxReceived), event)
}

func (q *Queue) PublishClaimConverted(ctx context.Context, event domain.ClaimConverted) error {
	return q.publish(ctx, q.subject(SubjectClaimConverted), event)
}

func (q *Queue) publish(ctx context.Context, subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	err = q.executor.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}, classifyNATSError)
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

// SubscribeInboxReceived blocks until ctx is done, then drains the subscription.
func (q *Queue) SubscribeInboxReceived(ctx context.Context, handler func(context.Context, domain.InboxReceived) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject(SubjectInboxReceived), workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		event, err := decodeInboxReceived(msg.Data)
		if err != nil {
			q.logger.Error("nats_message_invalid", "subject", msg.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event); err != nil {
			q.logger.Error("worker_handler_failed", "inbox_id", event.InboxID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func decodeInboxReceived(data []byte) (domain.InboxReceived, error) {
	var event domain.InboxReceived
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("decode inbox.received: %w", err)
	}
	if event.InboxID == "" {
		return event, fmt.Errorf("decode inbox.received: inbox_id is empty")
	}
	return event, nil
}
