package eventbus

import "context"

// Consumer handles events of one type delivered by the bus, e.g. the
// notification fan-out on status changes. GetWorkerCount sets how many
// workers drain the consumer's channel; a returned error triggers the
// bus's retry with backoff.
type Consumer interface {
	Consume(ctx context.Context, event Event) error
	GetWorkerCount() int
}
