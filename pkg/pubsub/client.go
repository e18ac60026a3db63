// Package pubsub owns the Google Pub/Sub connection the outbox relay publishes
// domain events through.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/tixmarket-backend/pkg/config"
	"github.com/angelmondragon/tixmarket-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("pubsub: gcp project id is required")
	errNoDomainTopic     = errors.New("pubsub: domain topic is required")
	errClosed            = errors.New("pubsub: client not initialized")
)

// Client hands out one ordered publisher per topic. Publishers are created
// lazily and flushed on Close.
type Client struct {
	raw     *gcppubsub.Client
	project string
	domain  string

	mu   sync.Mutex
	pubs map[string]*gcppubsub.Publisher
}

// NewClient dials Pub/Sub and fails fast when the domain topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	domain := strings.TrimSpace(cfg.DomainTopic)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case domain == "":
		return nil, errNoDomainTopic
	}

	raw, err := gcppubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub: dial: %w", err)
	}
	c := &Client{raw: raw, project: project, domain: domain, pubs: map[string]*gcppubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topic": domain}), "pubsub.connected")
	}
	return c, nil
}

// Ping looks up the domain topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.raw == nil {
		return errClosed
	}
	return c.topicExists(ctx, c.domain)
}

func (c *Client) topicExists(ctx context.Context, topic string) error {
	name := topicResourceName(c.project, topic)
	if name == "" {
		return fmt.Errorf("pubsub: topic %q not configured", topic)
	}
	_, err := c.raw.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub: topic %s does not exist", name)
	default:
		return fmt.Errorf("pubsub: get topic %s: %w", name, err)
	}
}

// Publisher returns the ordered publisher for a topic id or full resource
// name. Messages sharing an ordering key are delivered in publish order.
func (c *Client) Publisher(topic string) *gcppubsub.Publisher {
	if c == nil || c.raw == nil {
		return nil
	}
	name := topicResourceName(c.project, topic)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	pub, ok := c.pubs[name]
	if !ok {
		pub = c.raw.Publisher(name)
		pub.EnableMessageOrdering = true
		c.pubs[name] = pub
	}
	return pub
}

// Close stops every publisher, waiting for in-flight sends, then closes the
// connection.
func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	c.mu.Lock()
	pubs := c.pubs
	c.pubs = map[string]*gcppubsub.Publisher{}
	c.mu.Unlock()

	for _, pub := range pubs {
		pub.Stop()
	}
	return c.raw.Close()
}

// topicResourceName expands a bare topic id to projects/<p>/topics/<id>.
func topicResourceName(project, topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") && strings.Contains(topic, "/topics/") {
		return topic
	}
	project = strings.TrimSpace(project)
	if topic == "" || project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + topic
}
