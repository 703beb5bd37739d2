// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harina-30/ecrctl/internal/policy"
)

const (
	testAccount    = "665168932067"
	testRegion     = "eu-north-1"
	testRepo       = "coursera/spring-boot-docker"
	testSourceRepo = "harina-30/spring-boot-docker"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		AccountID:  testAccount,
		Region:     testRegion,
		Repository: testRepo,
		SourceRepo: testSourceRepo,
		OutDir:     t.TempDir(),
	}
}

// fakeIAM implements IAMAPI in memory and records every call by name so
// tests can assert on ordering and idempotence.
type fakeIAM struct {
	providerARNs []string
	roles        map[string]iamtypes.Role
	inline       map[string]string
	calls        []string
	failOn       map[string]error
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{
		roles:  map[string]iamtypes.Role{},
		inline: map[string]string{},
		failOn: map[string]error{},
	}
}

func (f *fakeIAM) fail(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeIAM) ListOpenIDConnectProviders(_ context.Context, _ *iam.ListOpenIDConnectProvidersInput, _ ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error) {
	if err := f.fail("ListOpenIDConnectProviders"); err != nil {
		return nil, err
	}
	out := &iam.ListOpenIDConnectProvidersOutput{}
	for _, arn := range f.providerARNs {
		out.OpenIDConnectProviderList = append(out.OpenIDConnectProviderList,
			iamtypes.OpenIDConnectProviderListEntry{Arn: awsv2.String(arn)})
	}
	return out, nil
}

func (f *fakeIAM) CreateOpenIDConnectProvider(_ context.Context, params *iam.CreateOpenIDConnectProviderInput, _ ...func(*iam.Options)) (*iam.CreateOpenIDConnectProviderOutput, error) {
	if err := f.fail("CreateOpenIDConnectProvider"); err != nil {
		return nil, err
	}
	arn := policy.ProviderARN(testAccount)
	f.providerARNs = append(f.providerARNs, arn)
	return &iam.CreateOpenIDConnectProviderOutput{
		OpenIDConnectProviderArn: awsv2.String(arn),
	}, nil
}

func (f *fakeIAM) GetRole(_ context.Context, params *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if err := f.fail("GetRole"); err != nil {
		return nil, err
	}
	role, ok := f.roles[awsv2.ToString(params.RoleName)]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: awsv2.String("not found")}
	}
	return &iam.GetRoleOutput{Role: &role}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, params *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	if err := f.fail("CreateRole"); err != nil {
		return nil, err
	}
	name := awsv2.ToString(params.RoleName)
	role := iamtypes.Role{
		RoleName: params.RoleName,
		Arn:      awsv2.String(policy.RoleARN(testAccount, name)),
		AssumeRolePolicyDocument: awsv2.String(
			url.QueryEscape(awsv2.ToString(params.AssumeRolePolicyDocument))),
	}
	f.roles[name] = role
	return &iam.CreateRoleOutput{Role: &role}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, params *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	if err := f.fail("PutRolePolicy"); err != nil {
		return nil, err
	}
	f.inline[awsv2.ToString(params.PolicyName)] = awsv2.ToString(params.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

// fakeECR implements ECRAPI in memory.
type fakeECR struct {
	repos  map[string]ecrtypes.Repository
	calls  []string
	failOn map[string]error
	token  string
}

func newFakeECR() *fakeECR {
	return &fakeECR{
		repos:  map[string]ecrtypes.Repository{},
		failOn: map[string]error{},
	}
}

func (f *fakeECR) fail(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeECR) DescribeRepositories(_ context.Context, params *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	if err := f.fail("DescribeRepositories"); err != nil {
		return nil, err
	}
	repo, ok := f.repos[params.RepositoryNames[0]]
	if !ok {
		return nil, &ecrtypes.RepositoryNotFoundException{Message: awsv2.String("not found")}
	}
	return &ecr.DescribeRepositoriesOutput{
		Repositories: []ecrtypes.Repository{repo},
	}, nil
}

func (f *fakeECR) CreateRepository(_ context.Context, params *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	if err := f.fail("CreateRepository"); err != nil {
		return nil, err
	}
	name := awsv2.ToString(params.RepositoryName)
	repo := ecrtypes.Repository{
		RepositoryName: params.RepositoryName,
		RepositoryArn:  awsv2.String(policy.RepositoryARN(testRegion, testAccount, name)),
		RepositoryUri:  awsv2.String(policy.RegistryHost(testAccount, testRegion) + "/" + name),
	}
	f.repos[name] = repo
	return &ecr.CreateRepositoryOutput{Repository: &repo}, nil
}

func (f *fakeECR) GetAuthorizationToken(_ context.Context, _ *ecr.GetAuthorizationTokenInput, _ ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error) {
	if err := f.fail("GetAuthorizationToken"); err != nil {
		return nil, err
	}
	return &ecr.GetAuthorizationTokenOutput{
		AuthorizationData: []ecrtypes.AuthorizationData{
			{
				AuthorizationToken: awsv2.String(f.token),
				ProxyEndpoint:      awsv2.String("https://" + policy.RegistryHost(testAccount, testRegion)),
			},
		},
	}, nil
}

func TestRun_FreshAccount(t *testing.T) {
	iamFake := newFakeIAM()
	ecrFake := newFakeECR()
	cfg := testConfig(t)

	result, err := New(cfg, iamFake, ecrFake).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "arn:aws:iam::665168932067:role/GitHubActionsECRRole", result.RoleARN)
	assert.Equal(t,
		"arn:aws:ecr:eu-north-1:665168932067:repository/coursera/spring-boot-docker",
		result.RepositoryARN)
	assert.Equal(t, policy.ProviderARN(testAccount), result.ProviderARN)
	assert.Empty(t, result.TrustDrift)

	// The named CI secrets travel with the result so every output format
	// carries them.
	assert.Equal(t, []Secret{
		{Name: "AWS_ROLE_TO_ASSUME", Value: result.RoleARN},
		{Name: "AWS_REGION", Value: testRegion},
		{Name: "ECR_REPOSITORY", Value: testRepo},
	}, result.Secrets)

	wantOutcomes := map[string]Outcome{
		"oidc-provider": OutcomeCreated,
		"role":          OutcomeCreated,
		"role-policy":   OutcomeReplaced,
		"repository":    OutcomeCreated,
	}
	require.Len(t, result.Steps, len(wantOutcomes))
	for _, sr := range result.Steps {
		assert.Equal(t, wantOutcomes[sr.Name], sr.Outcome, sr.Name)
	}

	// Both documents land on disk for review.
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, filepath.Join(cfg.OutDir, TrustPolicyFile), result.Artifacts[0].Path)
	assert.Equal(t, filepath.Join(cfg.OutDir, ECRPolicyFile), result.Artifacts[1].Path)

	assert.Contains(t, iamFake.inline, policy.InlinePolicyName)
}

func TestRun_Idempotent(t *testing.T) {
	iamFake := newFakeIAM()
	ecrFake := newFakeECR()
	cfg := testConfig(t)

	_, err := New(cfg, iamFake, ecrFake).Run(context.Background())
	require.NoError(t, err)

	iamFake.calls = nil
	ecrFake.calls = nil

	result, err := New(cfg, iamFake, ecrFake).Run(context.Background())
	require.NoError(t, err)

	// No create call happens the second time around.
	assert.NotContains(t, iamFake.calls, "CreateOpenIDConnectProvider")
	assert.NotContains(t, iamFake.calls, "CreateRole")
	assert.NotContains(t, ecrFake.calls, "CreateRepository")

	// And no duplicate resources exist.
	assert.Len(t, iamFake.providerARNs, 1)
	assert.Len(t, iamFake.roles, 1)
	assert.Len(t, ecrFake.repos, 1)

	for _, sr := range result.Steps {
		if sr.Name == "role-policy" {
			assert.Equal(t, OutcomeReplaced, sr.Outcome)
			continue
		}
		assert.Equal(t, OutcomeExists, sr.Outcome, sr.Name)
	}

	// The re-run reports the same identifiers.
	assert.Equal(t, "arn:aws:iam::665168932067:role/GitHubActionsECRRole", result.RoleARN)
	assert.Equal(t, policy.ProviderARN(testAccount), result.ProviderARN)
}

func TestRun_ProviderAlreadyExistsTolerated(t *testing.T) {
	iamFake := newFakeIAM()
	iamFake.providerARNs = []string{policy.ProviderARN(testAccount)}
	iamFake.failOn["CreateOpenIDConnectProvider"] = &iamtypes.EntityAlreadyExistsException{
		Message: awsv2.String("provider exists"),
	}
	ecrFake := newFakeECR()

	cfg := testConfig(t)
	cfg.CreateProvider = true // force the create call despite the existing one

	result, err := New(cfg, iamFake, ecrFake).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, iamFake.calls, "CreateOpenIDConnectProvider")
	assert.Equal(t, OutcomeExists, result.Steps[0].Outcome)
	assert.Equal(t, policy.ProviderARN(testAccount), result.Steps[0].Ref)
	assert.Equal(t, policy.ProviderARN(testAccount), result.ProviderARN)

	// The tolerated failure did not abort the rest of the sequence.
	assert.NotEmpty(t, result.RoleARN)
	assert.NotEmpty(t, result.RepositoryARN)
}

func TestRun_RemoteFailureAborts(t *testing.T) {
	iamFake := newFakeIAM()
	iamFake.failOn["CreateRole"] = errors.New("AccessDenied: not authorized")
	ecrFake := newFakeECR()

	_, err := New(testConfig(t), iamFake, ecrFake).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDenied")

	// Later steps never run.
	assert.NotContains(t, iamFake.calls, "PutRolePolicy")
	assert.Empty(t, ecrFake.calls)
}

func TestRun_ExistingRoleUnmodifiedAndDriftReported(t *testing.T) {
	iamFake := newFakeIAM()
	ecrFake := newFakeECR()

	// A role created earlier for a different source repository.
	stale, err := policy.Trust(testAccount, "someone-else/other-repo").JSON()
	require.NoError(t, err)
	iamFake.roles["GitHubActionsECRRole"] = iamtypes.Role{
		RoleName:                 awsv2.String("GitHubActionsECRRole"),
		Arn:                      awsv2.String(policy.RoleARN(testAccount, "GitHubActionsECRRole")),
		AssumeRolePolicyDocument: awsv2.String(url.QueryEscape(string(stale))),
	}

	result, err := New(testConfig(t), iamFake, ecrFake).Run(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, iamFake.calls, "CreateRole")
	assert.NotEmpty(t, result.TrustDrift)

	// The live role document is untouched.
	live := iamFake.roles["GitHubActionsECRRole"]
	decoded, err := url.QueryUnescape(awsv2.ToString(live.AssumeRolePolicyDocument))
	require.NoError(t, err)
	assert.Equal(t, string(stale), decoded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing account",
			mutate:  func(c *Config) { c.AccountID = "" },
			wantErr: "account",
		},
		{
			name:    "missing everything",
			mutate:  func(c *Config) { *c = Config{} },
			wantErr: "account, region, repo, source-repo",
		},
		{
			name:    "malformed source repo",
			mutate:  func(c *Config) { c.SourceRepo = "not-owner-name" },
			wantErr: "owner/name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, DefaultRoleName, cfg.RoleName)
				return
			}
			require.Error(t, err)
			assert.True(t, IsPrecondition(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_InvalidConfigMakesNoCalls(t *testing.T) {
	iamFake := newFakeIAM()
	ecrFake := newFakeECR()

	cfg := testConfig(t)
	cfg.SourceRepo = ""

	_, err := New(cfg, iamFake, ecrFake).Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Empty(t, iamFake.calls)
	assert.Empty(t, ecrFake.calls)
}

// fakeSTS implements STSAPI.
type fakeSTS struct {
	account string
	err     error
}

func (f *fakeSTS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{
		Account: awsv2.String(f.account),
		Arn:     awsv2.String("arn:aws:iam::" + f.account + ":user/operator"),
	}, nil
}

type staticCreds struct{ err error }

func (s staticCreds) Retrieve(context.Context) (awsv2.Credentials, error) {
	if s.err != nil {
		return awsv2.Credentials{}, s.err
	}
	return awsv2.Credentials{AccessKeyID: "AKIAEXAMPLE"}, nil
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name    string
		creds   staticCreds
		sts     *fakeSTS
		wantErr string
	}{
		{
			name:  "ok",
			creds: staticCreds{},
			sts:   &fakeSTS{account: testAccount},
		},
		{
			name:    "credentials unresolvable",
			creds:   staticCreds{err: errors.New("no providers configured")},
			sts:     &fakeSTS{account: testAccount},
			wantErr: "credentials are not resolvable",
		},
		{
			name:    "wrong account",
			creds:   staticCreds{},
			sts:     &fakeSTS{account: "000000000000"},
			wantErr: "not configured account",
		},
		{
			name:    "sts failure",
			creds:   staticCreds{},
			sts:     &fakeSTS{err: errors.New("throttled")},
			wantErr: "caller identity check failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Preflight(context.Background(), tt.creds, tt.sts, testConfig(t))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsPrecondition(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteDocuments(t *testing.T) {
	cfg := testConfig(t)

	artifacts, err := WriteDocuments(cfg)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)
	assert.Equal(t, filepath.Join(cfg.OutDir, TrustPolicyFile), artifacts[0].Path)
	assert.Equal(t, filepath.Join(cfg.OutDir, ECRPolicyFile), artifacts[1].Path)
}
