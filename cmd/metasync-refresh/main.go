// Command metasync-refresh asks a running follower to rebuild its state
// from a full metastore snapshot, by publishing the full update trigger.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/syntrixbase/metasync/internal/config"
	"github.com/syntrixbase/metasync/internal/core/pubsub"
	natsps "github.com/syntrixbase/metasync/internal/core/pubsub/nats"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "Publish timeout")
	flag.Parse()

	cfg := config.LoadConfig()

	nc, err := nats.Connect(cfg.PubSub.URL)
	if err != nil {
		log.Fatalf("Failed to connect to NATS at %s: %v", cfg.PubSub.URL, err)
	}
	defer nc.Close()

	pub, err := natsps.NewPublisher(nc, pubsub.PublisherOptions{
		StreamName: cfg.PubSub.Stream,
	})
	if err != nil {
		log.Fatalf("Failed to create publisher: %v", err)
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// The payload identifies the request in the follower's logs.
	requestID := uuid.NewString()
	subject := cfg.Follower.FullUpdateSubject
	if err := pub.Publish(ctx, subject, []byte(requestID)); err != nil {
		log.Fatalf("Failed to publish full update trigger: %v", err)
	}

	log.Printf("Full update trigger published to %s (request %s)", subject, requestID)
}
