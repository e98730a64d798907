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

package producer

import "errors"

// Mutating-API errors, returned synchronously from the call that
// triggered them; these never tear down the Producer.
var (
	ErrDuplicatePoint = errors.New("otp producer: point already exists at this priority")
	ErrNoSuchPoint    = errors.New("otp producer: no matching point")
	ErrNoSuchModule   = errors.New("otp producer: no matching module")
	ErrInvalidName    = errors.New("otp producer: name exceeds maximum length")
	ErrInterfaceBind  = errors.New("otp producer: failed to bind interface")
	ErrAlreadyRunning = errors.New("otp producer: already running")
	ErrNotRunning     = errors.New("otp producer: not running")
)
