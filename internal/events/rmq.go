package events

import (
	"context"
	"encoding/json"

	"github.com/golden-vcr/server-common/rmq"
)

type rmqProducer struct {
	p rmq.Producer
}

// NewProducer returns a Producer that sends JSON-encoded events to a RabbitMQ exchange
// via the given rmq.Producer
func NewProducer(p rmq.Producer) Producer {
	return &rmqProducer{p: p}
}

func (r *rmqProducer) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.p.Send(ctx, data)
}
