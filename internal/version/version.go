// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package version holds the build version, overridden at link time with
// -ldflags "-X github.com/harina-30/ecrctl/internal/version.Version=...".
package version

var Version = "dev"
