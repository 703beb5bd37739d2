// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package tokencache persists ECR authorization tokens between login runs so
// repeated logins within the token's 12-hour lifetime skip the remote call.
package tokencache
