/*
Copyright (c) the go-otp authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package producer implements the OTP producer engine: a point/module
// data store and a transmit scheduler that serializes it through the
// protocol package and hands datagrams to a transport.Socket.
package producer

import (
	"os"

	"github.com/go-otp/otp/protocol"
	uuid "github.com/satori/go.uuid"
	yaml "gopkg.in/yaml.v2"
)

// IPMode selects which address families a Producer joins.
type IPMode uint8

// Supported IP modes.
const (
	IPModeV4Only IPMode = iota
	IPModeV6Only
	IPModeDual
)

// MinTransmitIntervalMS and MaxTransmitIntervalMS bound the configurable
// transmit interval.
const (
	MinTransmitIntervalMS = 1
	MaxTransmitIntervalMS = 50
)

// AdvertisementIntervalMS is the fixed ~10s cadence for System, Module and
// Name advertisements.
const AdvertisementIntervalMS = 10000

// FullPointSetIntervalMS is the maximum time between full-point-set
// keepalive Transform Messages for any system with at least one point.
const FullPointSetIntervalMS = 1000

// Config is the Producer's static configuration, read once at
// construction, following the split StaticConfig-style pattern used
// elsewhere in this module's ambient stack.
type Config struct {
	CID                protocol.CID
	ComponentName      string
	IPMode             IPMode
	Interface          string
	DefaultPriority    uint8
	TransmitIntervalMS int
	TTL                int
}

// NewConfig returns a Config with sane defaults: a random CID, the
// protocol default priority, and the slowest allowed transmit interval.
func NewConfig(componentName string) *Config {
	return &Config{
		CID:                NewRandomCID(),
		ComponentName:      componentName,
		IPMode:             IPModeDual,
		DefaultPriority:    protocol.DefaultPriority,
		TransmitIntervalMS: MaxTransmitIntervalMS,
		TTL:                1,
	}
}

// NewRandomCID generates a random 128-bit component identifier.
func NewRandomCID() protocol.CID {
	return protocol.CID(uuid.NewV4())
}

// clampInterval enforces the [MinTransmitIntervalMS, MaxTransmitIntervalMS] floor/ceiling.
func clampInterval(ms int) int {
	if ms < MinTransmitIntervalMS {
		return MinTransmitIntervalMS
	}
	if ms > MaxTransmitIntervalMS {
		return MaxTransmitIntervalMS
	}
	return ms
}

// Normalize clamps TransmitIntervalMS into its valid range in place.
func (c *Config) Normalize() {
	c.TransmitIntervalMS = clampInterval(c.TransmitIntervalMS)
}

// persistedConfig is the subset of Config that round-trips through YAML,
// mirroring the DynamicConfig read/write helpers used by the ambient
// server configuration in this corpus.
type persistedConfig struct {
	CID                string `yaml:"cid"`
	ComponentName      string `yaml:"component_name"`
	DefaultPriority    uint8  `yaml:"default_priority"`
	TransmitIntervalMS int    `yaml:"transmit_interval_ms"`
}

// Write persists the CID and a handful of dynamic fields to path so a
// restarted producer can keep the same identity.
func (c *Config) Write(path string) error {
	pc := persistedConfig{
		CID:                c.CID.String(),
		ComponentName:      c.ComponentName,
		DefaultPriority:    c.DefaultPriority,
		TransmitIntervalMS: c.TransmitIntervalMS,
	}
	d, err := yaml.Marshal(&pc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0644)
}

// ReadInto loads a previously Write-n configuration from path, overlaying
// it onto c.
func (c *Config) ReadInto(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var pc persistedConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return err
	}
	if pc.CID != "" {
		id, err := uuid.FromString(pc.CID)
		if err != nil {
			return err
		}
		c.CID = protocol.CID(id)
	}
	c.ComponentName = pc.ComponentName
	c.DefaultPriority = pc.DefaultPriority
	c.TransmitIntervalMS = pc.TransmitIntervalMS
	return nil
}
