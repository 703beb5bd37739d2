// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harina-30/ecrctl/internal/policy"
)

func TestRegistryLogin(t *testing.T) {
	ecrFake := newFakeECR()
	ecrFake.token = base64.StdEncoding.EncodeToString([]byte("AWS:sekrit"))

	auth, err := RegistryLogin(context.Background(), ecrFake)
	require.NoError(t, err)

	assert.Equal(t, "AWS", auth.Username)
	assert.Equal(t, "sekrit", auth.Password)
	assert.Equal(t, "665168932067.dkr.ecr.eu-north-1.amazonaws.com", auth.Endpoint)
}

func TestRegistryLogin_MalformedToken(t *testing.T) {
	ecrFake := newFakeECR()
	ecrFake.token = base64.StdEncoding.EncodeToString([]byte("no-separator"))

	_, err := RegistryLogin(context.Background(), ecrFake)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestRegistryLogin_RemoteFailure(t *testing.T) {
	ecrFake := newFakeECR()
	ecrFake.failOn["GetAuthorizationToken"] = errors.New("AccessDenied")

	_, err := RegistryLogin(context.Background(), ecrFake)
	require.Error(t, err)
}

func TestTrustDrift(t *testing.T) {
	desired, err := testPolicyJSON("harina-30/spring-boot-docker")
	require.NoError(t, err)

	t.Run("identical documents", func(t *testing.T) {
		drift, err := trustDrift(urlEncode(desired), desired)
		require.NoError(t, err)
		assert.Empty(t, drift)
	})

	t.Run("different source repo", func(t *testing.T) {
		stale, err := testPolicyJSON("someone-else/other")
		require.NoError(t, err)

		drift, err := trustDrift(urlEncode(stale), desired)
		require.NoError(t, err)
		assert.NotEmpty(t, drift)
	})
}

func testPolicyJSON(sourceRepo string) ([]byte, error) {
	return policy.Trust(testAccount, sourceRepo).JSON()
}

func urlEncode(doc []byte) string {
	return url.QueryEscape(string(doc))
}
