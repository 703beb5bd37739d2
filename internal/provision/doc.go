// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package provision implements the idempotent sequence that maps a GitHub
// Actions identity to ECR push permissions: OIDC provider, assumable role,
// inline push policy and the target repository. Every step is phrased as
// create-if-absent or replace-if-present, so a partial failure is recovered
// by re-running the whole sequence.
package provision
