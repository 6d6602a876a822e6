package service

import (
	"net"

	"github.com/watchtree/watchtree/pkg/config"
)

// Config provides the configuration to expose snapshots with a service.
type Config struct {
	// Listener is used to serve requests.
	Listener net.Listener

	// Snapshot is the path of the snapshot opened when the client does not
	// name one in its launch request.
	Snapshot string

	// Conf configures the symbol context of every opened snapshot. It may
	// be nil.
	Conf *config.Config

	// DisconnectChan will be closed by the server when the client disconnects
	DisconnectChan chan<- struct{}
}
