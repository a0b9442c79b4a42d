package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"warbler/internal/queue"
)

// publish sends a timeline event after commit. A nil publisher means no timeline cache is
// configured; a failed publish is logged and never fails the request.
func publish(ctx context.Context, publisher queue.Publisher, component string, event queue.TimelineEvent) {
	if publisher == nil {
		return
	}

	msgID, err := publisher.Publish(ctx, queue.StreamTimeline, event)
	if err != nil {
		log.Printf("[%s] Failed to publish %s event: %v", component, event.Type, err)
		return
	}
	log.Debugf("[%s] Published %s: msgID=%s", component, event.Type, msgID)
}
