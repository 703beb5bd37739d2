// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package aws contains AWS-related helpers and adapters used by commands
// that interact with IAM, ECR and STS.
package aws
