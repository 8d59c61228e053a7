// Package pubsub opens the GCP Pub/Sub v2 client and resolves the topic and
// subscription handles the outbox publisher and notification worker use.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNothingToCheck    = errors.New("at least one pubsub topic or subscription is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Resource is a topic or subscription a process cannot run without.
type Resource struct {
	kind string
	name string
}

func TopicResource(name string) Resource {
	return Resource{kind: "topics", name: strings.TrimSpace(name)}
}

func SubscriptionResource(name string) Resource {
	return Resource{kind: "subscriptions", name: strings.TrimSpace(name)}
}

func (r Resource) path(projectID string) string {
	return resourceName(projectID, r.kind, r.name)
}

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []Resource
}

// NewClient connects to Pub/Sub and verifies every required resource exists so
// a misconfigured deploy fails at boot instead of on first publish or receive.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, required ...Resource) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	required = withoutBlank(required)
	if len(required) == 0 {
		return nil, errNothingToCheck
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg, required: required}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"gcp_project":  projectID,
			"pubsub_check": len(required),
		}), "pubsub ready")
	}
	return c, nil
}

func withoutBlank(resources []Resource) []Resource {
	kept := resources[:0:0]
	for _, r := range resources {
		if r.name != "" {
			kept = append(kept, r)
		}
	}
	return kept
}

// Ping confirms the required topics and subscriptions still exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	for _, r := range c.required {
		if err := c.exists(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) exists(ctx context.Context, r Resource) error {
	path := r.path(c.projectID)
	var err error
	switch r.kind {
	case "topics":
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: path})
	default:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: path})
	}
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s does not exist", path)
	default:
		return fmt.Errorf("checking %s: %w", path, err)
	}
}

// Subscription returns a Subscriber for a subscription ID or full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	path := SubscriptionResource(name).path(c.projectID)
	if path == "" {
		return nil
	}
	return c.client.Subscriber(path)
}

// NotificationSubscription is the subscriber the notification worker drains.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// Publisher returns a publisher handle for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	path := TopicResource(name).path(c.projectID)
	if path == "" {
		return nil
	}
	return c.client.Publisher(path)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a short ID to projects/<project>/<kind>/<id>. Names
// already qualified for the same kind pass through.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return ""
	}
	return "projects/" + projectID + "/" + kind + "/" + name
}
