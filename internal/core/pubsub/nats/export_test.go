package nats

import (
	"github.com/nats-io/nats.go"
)

// SetJetStreamNew allows setting the JetStreamNew variable for testing.
func SetJetStreamNew(f func(nc *nats.Conn) (JetStream, error)) func() {
	original := JetStreamNew
	JetStreamNew = f
	return func() {
		JetStreamNew = original
	}
}
