// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package command wires the ecrctl subcommands: apply, doctor, login and
// policy. Flag values resolve explicit flag first, then env vars, then the
// command-namespaced config file.
package command
