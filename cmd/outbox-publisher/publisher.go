package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const jitterWindow = 250 * time.Millisecond

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Resume(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherSet keeps one publisher per topic for the life of the process.
type publisherSet struct {
	factory publisherFactory
	byTopic map[string]publisher
}

func newPublisherSet(factory publisherFactory) *publisherSet {
	return &publisherSet{factory: factory, byTopic: map[string]publisher{}}
}

func (p *publisherSet) get(topic string) publisher {
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.factory(topic)
	if pub != nil {
		p.byTopic[topic] = pub
	}
	return pub
}

// stopAll flushes anything still buffered before the process exits.
func (p *publisherSet) stopAll() {
	for topic, pub := range p.byTopic {
		pub.Stop()
		delete(p.byTopic, topic)
	}
}

func orderedPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		pub := client.Publisher(topic)
		if pub == nil {
			return nil
		}
		pub.EnableMessageOrdering = true
		return &gcpPublisher{pub: pub}
	}
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{result: p.pub.Publish(ctx, msg)}
}

func (p *gcpPublisher) Resume(orderingKey string) {
	if orderingKey != "" {
		p.pub.ResumePublish(orderingKey)
	}
}

func (p *gcpPublisher) Stop() {
	p.pub.Stop()
}

type gcpPublishResult struct {
	result *gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	return r.result.Get(ctx)
}

func sleepWithJitter(ctx context.Context, d time.Duration) error {
	d += rand.N(jitterWindow)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
