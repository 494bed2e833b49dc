package main

import "context"

// echoTask returns the payload unchanged. Bound to a subject with a reply,
// it turns the worker into a simple request/reply responder.
func echoTask(ctx context.Context, payload []byte) ([]byte, error) {
	return payload, nil
}
