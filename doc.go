// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// ecrctl is the main package for the ecrctl command line tool. It wires the
// CLI, delegates to internal packages, and serves as the entry point.
package main
