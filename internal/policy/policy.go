// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Fixed values of the GitHub Actions OIDC federation. The audience and the
// issuer thumbprint are dictated by AWS/GitHub, not by this tool; the subject
// condition built from them is the sole access-control boundary of the whole
// workflow and must not be broadened.
const (
	IssuerHost = "token.actions.githubusercontent.com"
	IssuerURL  = "https://" + IssuerHost
	Audience   = "sts.amazonaws.com"
	Thumbprint = "6938fd4d98bab03faadb97b34396831e3780aea1"
)

// InlinePolicyName is the name of the inline permission policy attached to
// the role. A re-run replaces the policy of the same name.
const InlinePolicyName = "ECRPushPolicy"

// Document is an IAM policy document.
type Document struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single IAM policy statement. Action marshals as a JSON
// array even when it holds one element, which keeps the emitted documents
// byte-comparable between runs.
type Statement struct {
	Sid       string               `json:"Sid,omitempty"`
	Effect    string               `json:"Effect"`
	Principal *Principal           `json:"Principal,omitempty"`
	Action    []string             `json:"Action"`
	Resource  string               `json:"Resource,omitempty"`
	Condition map[string]Condition `json:"Condition,omitempty"`
}

// Principal identifies who a trust statement applies to.
type Principal struct {
	Federated string `json:"Federated,omitempty"`
}

// Condition maps a condition key to its expected value.
type Condition map[string]string

const version = "2012-10-17"

// ProviderARN returns the ARN of the account's OIDC provider for the GitHub
// Actions token issuer.
func ProviderARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:oidc-provider/%s", accountID, IssuerHost)
}

// RoleARN returns the ARN the role will have once created.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// RepositoryARN returns the ARN of the ECR repository the permission policy
// is scoped to.
func RepositoryARN(region, accountID, repo string) string {
	return fmt.Sprintf("arn:aws:ecr:%s:%s:repository/%s", region, accountID, repo)
}

// RegistryHost returns the docker registry hostname for the account/region.
func RegistryHost(accountID, region string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", accountID, region)
}

// SubjectPattern returns the StringLike value that constrains which GitHub
// repository's workflows may assume the role.
func SubjectPattern(sourceRepo string) string {
	return fmt.Sprintf("repo:%s:*", sourceRepo)
}

// ValidSourceRepo reports whether ref is an owner/name GitHub reference.
func ValidSourceRepo(ref string) bool {
	parts := strings.Split(ref, "/")
	return len(parts) == 2 && parts[0] != "" && parts[1] != ""
}

// Trust builds the trust-policy document that allows GitHub Actions runs of
// sourceRepo, and nothing else, to assume the role via the account's OIDC
// provider.
func Trust(accountID, sourceRepo string) Document {
	return Document{
		Version: version,
		Statement: []Statement{
			{
				Effect:    "Allow",
				Principal: &Principal{Federated: ProviderARN(accountID)},
				Action:    []string{"sts:AssumeRoleWithWebIdentity"},
				Condition: map[string]Condition{
					"StringEquals": {
						IssuerHost + ":aud": Audience,
					},
					"StringLike": {
						IssuerHost + ":sub": SubjectPattern(sourceRepo),
					},
				},
			},
		},
	}
}

// Permissions builds the minimal push-permission document. Only
// GetAuthorizationToken is unscoped (the API requires Resource "*"); every
// other action is limited to the single repository ARN.
func Permissions(region, accountID, repo string) Document {
	arn := RepositoryARN(region, accountID, repo)
	return Document{
		Version: version,
		Statement: []Statement{
			{
				Sid:      "GetAuthorizationToken",
				Effect:   "Allow",
				Action:   []string{"ecr:GetAuthorizationToken"},
				Resource: "*",
			},
			{
				Sid:    "ManageRepository",
				Effect: "Allow",
				Action: []string{
					"ecr:CreateRepository",
					"ecr:DescribeRepositories",
				},
				Resource: arn,
			},
			{
				Sid:    "PushImages",
				Effect: "Allow",
				Action: []string{
					"ecr:BatchCheckLayerAvailability",
					"ecr:InitiateLayerUpload",
					"ecr:UploadLayerPart",
					"ecr:CompleteLayerUpload",
					"ecr:PutImage",
					"ecr:BatchGetImage",
				},
				Resource: arn,
			},
		},
	}
}

// JSON renders the document indented, as written to disk and sent to IAM.
func (d Document) JSON() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal policy document: %w", err)
	}
	return out, nil
}
