// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package output renders command results in text, json, yaml and raw forms.
package output
