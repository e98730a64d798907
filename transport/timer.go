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

package transport

import "time"

// Timer abstracts a repeating clock tick so the producer scheduler and
// consumer staleness sweep can be driven by a fake in tests instead of
// wall-clock time.
type Timer interface {
	C() <-chan time.Time
	Stop()
}

// tickerTimer adapts a *time.Ticker to Timer.
type tickerTimer struct {
	t *time.Ticker
}

// NewTicker returns a Timer that fires every interval.
func NewTicker(interval time.Duration) Timer {
	return &tickerTimer{t: time.NewTicker(interval)}
}

func (t *tickerTimer) C() <-chan time.Time { return t.t.C }
func (t *tickerTimer) Stop()               { t.t.Stop() }
