/*
Package events provides an in-memory broker for build lifecycle events.

# Event Types

	build.completed   a build was published; Generation is set, Metadata
	                  carries kind and retried
	build.failed      a build failed and the previous one stays live;
	                  Message is the error
	cache.reset       the compilation cache was discarded, either for a
	                  complete build or after a failure
	snapshot.loaded   the manifest directory was read; Metadata carries
	                  the request number and resource count

The reconciler publishes the build and cache events. The serve command
publishes snapshot.loaded from the watcher handler.

# Delivery

	Publish ──▶ queue (100) ──▶ run loop ──▶ subscriber (50 each)

Delivery is asynchronous. Publish never blocks a build: the event is
dropped with a warning when the queue is full, and a subscriber whose
buffer is full misses the event. Events missing an ID or Timestamp get one
on Publish. After Stop, Publish discards events.

Unsubscribe closes the subscriber channel, so a range over it ends.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for ev := range sub {
		fmt.Println(ev.Type, ev.Generation)
	}
*/
package events
