package config

import "fmt"

const (
	// DefaultMaxWebSocketClients is the default maximum number of websocket
	// clients per RPC server.
	DefaultMaxWebSocketClients = 64
	// DefaultMaxNotifications is the default maximum number of notifications
	// returned by a single getnotifications call.
	DefaultMaxNotifications = 1000
)

// RPC is an RPC service configuration information.
type RPC struct {
	BasicService         `yaml:",inline"`
	EnableCORSWorkaround bool `yaml:"EnableCORSWorkaround"`
	// MaxNotifications limits the getnotifications result size.
	MaxNotifications    int `yaml:"MaxNotifications"`
	MaxRequestBodyBytes int `yaml:"MaxRequestBodyBytes"`
	MaxWebSocketClients int `yaml:"MaxWebSocketClients"`
	// EnableDevMethods allows chain-manipulating methods like mineblocks.
	EnableDevMethods bool `yaml:"EnableDevMethods"`
}

// Validate checks RPC for internal consistency. It returns an error if the
// configuration is invalid.
func (cfg *RPC) Validate() error {
	if cfg.Enabled && len(cfg.Addresses) == 0 {
		return fmt.Errorf("%w: RPC is enabled, but no Addresses are specified", ErrInvalidConfig)
	}
	if cfg.MaxWebSocketClients < 0 || cfg.MaxNotifications < 0 || cfg.MaxRequestBodyBytes < 0 {
		return fmt.Errorf("%w: negative RPC limits", ErrInvalidConfig)
	}
	return nil
}
