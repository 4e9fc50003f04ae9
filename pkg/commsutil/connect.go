// Package commsutil provides COMMS connection helpers, event subjects and payload codecs.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// ConnectOptions tunes Connect. Zero fields take the value from
// DefaultConnectOptions.
type ConnectOptions struct {
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultConnectOptions returns the options used by Connect.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		Timeout:       10 * time.Second,
		ReconnectWait: 2 * time.Second,
		MaxReconnects: 60,
	}
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	d := DefaultConnectOptions()
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = d.ReconnectWait
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = d.MaxReconnects
	}
	return o
}

// Connect opens the event connection with the default options.
func Connect(url, name string) (*comms.Conn, error) {
	return ConnectWith(url, name, DefaultConnectOptions())
}

// ConnectWith opens the event connection. Disconnects and reconnects are
// logged; publishing while disconnected is buffered by the client.
func ConnectWith(url, name string, opts ConnectOptions) (*comms.Conn, error) {
	opts = opts.withDefaults()
	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(opts.Timeout),
		comms.ReconnectWait(opts.ReconnectWait),
		comms.MaxReconnects(opts.MaxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - %s disconnected: %v", logPrefix, name, err))
			}
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - %s reconnected to %s", logPrefix, name, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(*comms.Conn) {
			slog.Debug(fmt.Sprintf("%s - %s connection closed", logPrefix, name))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - connect %s: %w", logPrefix, url, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}
