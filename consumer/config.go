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

// Package consumer implements the OTP consumer engine: producer
// discovery, per-address priority/CID merge across producers, and
// staleness/loss detection, delivered to the application through a
// Delegate.
package consumer

import (
	"time"

	"github.com/go-otp/otp/protocol"
	uuid "github.com/satori/go.uuid"
)

// DataLossTimeout is the default time since a producer's last update
// after which it is considered stale and, eventually, lost.
const DataLossTimeout = 7500 * time.Millisecond

// Config is the consumer's static configuration.
type Config struct {
	CID             protocol.CID
	ComponentName   string
	Interface       string
	DataLossTimeout time.Duration
}

// NewConfig returns a Config with a random CID and the default data-loss
// timeout.
func NewConfig(componentName string) *Config {
	return &Config{
		CID:             protocol.CID(uuid.NewV4()),
		ComponentName:   componentName,
		DataLossTimeout: DataLossTimeout,
	}
}

// Normalize applies the DataLossTimeout floor when unset.
func (c *Config) Normalize() {
	if c.DataLossTimeout <= 0 {
		c.DataLossTimeout = DataLossTimeout
	}
}
