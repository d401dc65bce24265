package config

import (
	"strings"
	"time"
)

// Fallbacks applied after merging all sources, so that a minimal deployment
// (address + DSN + sign key) starts without spelling out every knob.
const (
	defaultRequestTimeout     = 30 * time.Second
	defaultTokenDuration      = 24 * time.Hour
	defaultPingInterval       = 30 * time.Second
	defaultWriteTimeout       = 10 * time.Second
	defaultSendBuffer         = 16
	defaultBackoffBase        = time.Second
	defaultBackoffCap         = 30 * time.Second
	defaultBackoffMaxAttempts = 10
	defaultSyncInterval       = 5 * time.Minute
)

func (cfg *StructuredConfig) applyDefaults() {
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = defaultTokenDuration
	}
	if cfg.Realtime.PingInterval == 0 {
		cfg.Realtime.PingInterval = defaultPingInterval
	}
	if cfg.Realtime.WriteTimeout == 0 {
		cfg.Realtime.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Realtime.SendBuffer == 0 {
		cfg.Realtime.SendBuffer = defaultSendBuffer
	}
	if cfg.Adapter.RequestTimeout == 0 {
		cfg.Adapter.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Device.BackoffBase == 0 {
		cfg.Device.BackoffBase = defaultBackoffBase
	}
	if cfg.Device.BackoffCap == 0 {
		cfg.Device.BackoffCap = defaultBackoffCap
	}
	if cfg.Device.BackoffMaxAttempts == 0 {
		cfg.Device.BackoffMaxAttempts = defaultBackoffMaxAttempts
	}
	if cfg.Workers.SyncInterval == 0 {
		cfg.Workers.SyncInterval = defaultSyncInterval
	}
}

// validate checks that the final merged [StructuredConfig] satisfies all
// invariants shared by both binaries. Per-binary requirements are checked in
// [StructuredConfig.validateServer] and [DeviceConfig.validate], since the
// server does not need an adapter address and the agent does not need a DSN.
func (cfg *StructuredConfig) validate() error {
	return nil
}

// validateServer checks the invariants required to start the sync server.
func (cfg *StructuredConfig) validateServer() error {
	if cfg.Server.HTTPAddress == "" {
		return ErrInvalidServerConfigs
	}
	if cfg.Storage.DB.DSN == "" {
		return ErrInvalidStorageConfigs
	}
	if cfg.Auth.TokenSignKey == "" {
		return ErrInvalidAuthConfigs
	}
	return nil
}

func (cfg *DeviceConfig) validate() error {
	if cfg.Storage.StatePath == "" || strings.Contains(cfg.Storage.StatePath, "memory") {
		return ErrInvalidStorageConfigs
	}

	if cfg.Adapter.HTTPAddress == "" || cfg.Adapter.RequestTimeout == 0 {
		return ErrInvalidAdapterConfigs
	}

	if cfg.Workers.SyncInterval == 0 {
		return ErrInvalidWorkerConfigs
	}

	return nil
}
