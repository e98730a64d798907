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

package consumer

import "errors"

var (
	// ErrAlreadyRunning reports a consumer that is already running.
	// Consumer has no Run method; nothing in this package returns it.
	ErrAlreadyRunning = errors.New("otp consumer: already running")
	// ErrNotRunning reports a consumer that is not running. Nothing in
	// this package returns it.
	ErrNotRunning = errors.New("otp consumer: not running")
)
