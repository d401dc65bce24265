package config

import (
	"fmt"
	"time"
)

// DeviceAdapter holds network settings used by the device agent transport
// layer.
type DeviceAdapter struct {
	// HTTPAddress is the sync server base address.
	HTTPAddress string
	// RequestTimeout is the default timeout for outbound requests.
	RequestTimeout time.Duration
}

// DeviceStorage groups the device agent's durable local state settings.
type DeviceStorage struct {
	// StatePath is the SQLite file holding device identity, circle binding,
	// pending queue, and watermark.
	StatePath string
}

// DeviceRealtime holds the reconnection policy for the realtime connection.
type DeviceRealtime struct {
	// BackoffBase is the first reconnect delay.
	BackoffBase time.Duration
	// BackoffCap bounds the exponential reconnect delay.
	BackoffCap time.Duration
	// BackoffMaxAttempts bounds consecutive reconnect attempts.
	BackoffMaxAttempts int
}

// DeviceWorkers contains device agent background job settings.
type DeviceWorkers struct {
	// SyncInterval defines how often the periodic sync job runs.
	SyncInterval time.Duration
}

// DeviceConfig is the top-level device agent configuration assembled from
// [StructuredConfig].
type DeviceConfig struct {
	// Adapter contains outbound transport addresses and timeouts.
	Adapter DeviceAdapter
	// Storage contains local state settings.
	Storage DeviceStorage
	// Realtime contains the reconnection policy.
	Realtime DeviceRealtime
	// Workers contains background job settings.
	Workers DeviceWorkers
}

// GetDeviceConfig builds and validates a device-agent-specific config view
// from the merged structured configuration.
//
// It loads the base config via [GetStructuredConfig], maps only the fields
// relevant to the agent runtime, and validates the resulting [DeviceConfig].
func GetDeviceConfig() (*DeviceConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	deviceCfg := &DeviceConfig{
		Adapter: DeviceAdapter{
			HTTPAddress:    cfg.Adapter.HTTPAddress,
			RequestTimeout: cfg.Adapter.RequestTimeout,
		},
		Storage: DeviceStorage{
			StatePath: cfg.Device.StatePath,
		},
		Realtime: DeviceRealtime{
			BackoffBase:        cfg.Device.BackoffBase,
			BackoffCap:         cfg.Device.BackoffCap,
			BackoffMaxAttempts: cfg.Device.BackoffMaxAttempts,
		},
		Workers: DeviceWorkers{SyncInterval: cfg.Workers.SyncInterval},
	}

	return deviceCfg, deviceCfg.validate()
}

// GetServerConfig loads the merged configuration and additionally enforces
// the invariants the sync server needs at startup.
func GetServerConfig() (*StructuredConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, err
	}

	return cfg, cfg.validateServer()
}
