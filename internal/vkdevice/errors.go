// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package vkdevice

import "errors"

var errAllocationFailed = errors.New("vkdevice: device operation failed")
