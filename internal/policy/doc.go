// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

// Package policy builds the two IAM policy documents the provisioning
// workflow depends on: the OIDC trust policy and the repository-scoped ECR
// push permission policy.
package policy
