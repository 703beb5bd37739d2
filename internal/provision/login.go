// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
)

// RegistryAuth is a decoded ECR authorization token. Tokens are valid for 12
// hours; ExpiresAt is the provider's own expiry.
type RegistryAuth struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Endpoint  string    `json:"endpoint"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegistryLogin retrieves and decodes an authorization token for the
// account's default registry. The token body is base64 of "user:password".
func RegistryLogin(ctx context.Context, api ECRAPI) (*RegistryAuth, error) {
	out, err := api.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization token: %w", err)
	}
	if len(out.AuthorizationData) == 0 {
		return nil, errors.New("no authorization data returned")
	}

	data := out.AuthorizationData[0]
	raw, err := base64.StdEncoding.DecodeString(awsv2.ToString(data.AuthorizationToken))
	if err != nil {
		return nil, fmt.Errorf("failed to decode authorization token: %w", err)
	}

	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return nil, errors.New("malformed authorization token")
	}

	auth := &RegistryAuth{
		Username: user,
		Password: pass,
		Endpoint: strings.TrimPrefix(awsv2.ToString(data.ProxyEndpoint), "https://"),
	}
	if data.ExpiresAt != nil {
		auth.ExpiresAt = *data.ExpiresAt
	}

	return auth, nil
}
