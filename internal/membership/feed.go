package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"healthchat/internal/models"
)

// Unsubscribe detaches a previously registered handler from the feed.
type Unsubscribe func()

// Feed delivers live room membership change events. Handlers run
// synchronously on receipt of each event; there is no batching.
type Feed interface {
	Subscribe(handler func(models.MembershipEvent)) (Unsubscribe, error)
}

// FeedConfig configures the NATS-backed membership feed.
type FeedConfig struct {
	ServerURL    string
	Subject      string
	Embedded     bool
	DataDir      string
	StartTimeout string // startup wait duration, e.g. "15s"
}

// NATSFeed is the NATS implementation of Feed. It optionally runs an
// embedded nats-server so a single binary needs no external broker.
type NATSFeed struct {
	config  FeedConfig
	server  *server.Server
	conn    *nats.Conn
	subject string
	log     *logrus.Entry
}

// NewNATSFeed connects to NATS (starting an embedded server first when
// configured) and returns a feed ready for Subscribe and Publish.
func NewNATSFeed(config FeedConfig) (*NATSFeed, error) {
	feed := &NATSFeed{
		config:  config,
		subject: config.Subject,
		log:     logrus.WithField("component", "membership-feed"),
	}
	if feed.subject == "" {
		feed.subject = "healthchat.membership"
	}

	if config.Embedded {
		if err := feed.startEmbeddedServer(); err != nil {
			return nil, fmt.Errorf("failed to start embedded server: %w", err)
		}
	}

	serverURL := feed.config.ServerURL
	if serverURL == "" {
		serverURL = nats.DefaultURL
	}

	conn, err := nats.Connect(serverURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		feed.shutdown()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	feed.conn = conn

	return feed, nil
}

// Subscribe implements Feed. The returned handle must be called to stop
// delivery; teardown is deterministic rather than implicit.
func (f *NATSFeed) Subscribe(handler func(models.MembershipEvent)) (Unsubscribe, error) {
	sub, err := f.conn.Subscribe(f.subject, func(msg *nats.Msg) {
		var event models.MembershipEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			f.log.WithError(err).Warn("dropping undecodable membership event")
			return
		}
		if err := event.Validate(); err != nil {
			f.log.WithError(err).WithField("user_id", event.UserID).Warn("dropping invalid membership event")
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.subject, err)
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Publish emits a membership event on the feed. Used by sync bridges and by
// tests; the service itself is only a consumer.
func (f *NATSFeed) Publish(event models.MembershipEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid membership event: %w", err)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal membership event: %w", err)
	}
	if err := f.conn.Publish(f.subject, data); err != nil {
		return fmt.Errorf("failed to publish membership event: %w", err)
	}
	return f.conn.Flush()
}

// Ready reports whether the feed connection is usable.
func (f *NATSFeed) Ready(ctx context.Context) error {
	if f.conn == nil || !f.conn.IsConnected() {
		return errors.New("membership feed is not connected")
	}
	return f.conn.FlushWithContext(ctx)
}

// Close disconnects from NATS and stops the embedded server, if any.
func (f *NATSFeed) Close() error {
	f.shutdown()
	return nil
}

func (f *NATSFeed) shutdown() {
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	if f.server != nil {
		f.server.Shutdown()
		f.server = nil
	}
}

// startEmbeddedServer runs a plain in-process nats-server on a random port
// and points the feed's connection at it.
func (f *NATSFeed) startEmbeddedServer() error {
	opts := &server.Options{
		Host:       "127.0.0.1",
		Port:       -1, // random port
		ServerName: fmt.Sprintf("healthchat-%d", time.Now().UnixNano()),
	}
	if f.config.DataDir != "" {
		if err := ensureDirectory(f.config.DataDir); err != nil {
			return fmt.Errorf("failed to ensure data directory: %w", err)
		}
		opts.StoreDir = f.config.DataDir
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	go ns.Start()

	timeout := 15 * time.Second
	if f.config.StartTimeout != "" {
		if d, err := time.ParseDuration(f.config.StartTimeout); err == nil {
			timeout = d
		}
	}
	if !ns.ReadyForConnections(timeout) {
		ns.Shutdown()
		return fmt.Errorf("embedded server failed to start within %v", timeout)
	}

	f.server = ns
	f.config.ServerURL = ns.ClientURL()
	f.log.WithField("url", ns.ClientURL()).Info("embedded NATS server started")
	return nil
}

func ensureDirectory(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
