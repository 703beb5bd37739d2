// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/dustin/go-humanize"

	"github.com/harina-30/ecrctl/internal/policy"
)

// DefaultRoleName is used when no role name is configured.
const DefaultRoleName = "GitHubActionsECRRole"

// Artifact file names written to Config.OutDir for operator review.
const (
	TrustPolicyFile = "trust-policy.json"
	ECRPolicyFile   = "ecr-policy.json"
)

// IAMAPI is the slice of the IAM service the workflow consumes.
type IAMAPI interface {
	ListOpenIDConnectProviders(ctx context.Context, params *iam.ListOpenIDConnectProvidersInput, optFns ...func(*iam.Options)) (*iam.ListOpenIDConnectProvidersOutput, error)
	CreateOpenIDConnectProvider(ctx context.Context, params *iam.CreateOpenIDConnectProviderInput, optFns ...func(*iam.Options)) (*iam.CreateOpenIDConnectProviderOutput, error)
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// ECRAPI is the slice of the ECR service the workflow and login consume.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
}

// STSAPI is the slice of STS used by the pre-flight check.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Config is the full input of the workflow. All fields except CreateProvider
// and OutDir are required; Validate runs before any remote call.
type Config struct {
	AccountID      string
	Region         string
	Repository     string
	SourceRepo     string
	RoleName       string
	CreateProvider bool
	OutDir         string
}

// Validate fails fast on missing or malformed inputs.
func (c *Config) Validate() error {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, "account")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if c.Repository == "" {
		missing = append(missing, "repo")
	}
	if c.SourceRepo == "" {
		missing = append(missing, "source-repo")
	}
	if len(missing) > 0 {
		return &PreconditionError{Missing: missing}
	}

	if !policy.ValidSourceRepo(c.SourceRepo) {
		return &PreconditionError{
			Reason: fmt.Sprintf("source-repo %q is not an owner/name reference", c.SourceRepo),
		}
	}

	if c.RoleName == "" {
		c.RoleName = DefaultRoleName
	}
	if c.OutDir == "" {
		c.OutDir = "."
	}

	return nil
}

// Outcome of a single workflow step.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeExists   Outcome = "exists"
	OutcomeReplaced Outcome = "replaced"
)

// StepResult is the resource reference a completed step reports.
type StepResult struct {
	Name    string  `json:"name"`
	Outcome Outcome `json:"outcome"`
	Ref     string  `json:"ref"`
}

// Artifact is a policy document written to local storage for operator review.
type Artifact struct {
	Path string `json:"path"`
	Size string `json:"size"`
}

// Secret is a CI configuration key the caller should persist.
type Secret struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Result is the outcome of a full workflow run.
type Result struct {
	ProviderARN   string       `json:"provider_arn"`
	RoleARN       string       `json:"role_arn"`
	RepositoryARN string       `json:"repository_arn"`
	RepositoryURI string       `json:"repository_uri"`
	Region        string       `json:"region"`
	Repository    string       `json:"repository"`
	TrustDrift    string       `json:"trust_drift,omitempty"`
	Steps         []StepResult `json:"steps"`
	Artifacts     []Artifact   `json:"artifacts"`
	Secrets       []Secret     `json:"secrets"`
}

// Workflow runs the provisioning sequence against the given service slices.
type Workflow struct {
	cfg Config
	iam IAMAPI
	ecr ECRAPI
}

// New returns a Workflow for a validated Config.
func New(cfg Config, iamAPI IAMAPI, ecrAPI ECRAPI) *Workflow {
	return &Workflow{cfg: cfg, iam: iamAPI, ecr: ecrAPI}
}

// step is one typed unit of the sequence. A step either returns its resource
// reference or a fatal error; tolerated already-exists outcomes are mapped to
// success inside the step.
type step struct {
	name string
	run  func(context.Context, *Result) (StepResult, error)
}

// Run executes the steps strictly in order. The first non-tolerated failure
// aborts the remainder; no rollback is attempted because the provider holds
// the true resource state and the sequence is safe to re-run in full.
func (w *Workflow) Run(ctx context.Context) (*Result, error) {
	if err := w.cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{
		Region:     w.cfg.Region,
		Repository: w.cfg.Repository,
	}

	steps := []step{
		{name: "oidc-provider", run: w.ensureProvider},
		{name: "role", run: w.ensureRole},
		{name: "role-policy", run: w.putRolePolicy},
		{name: "repository", run: w.ensureRepository},
	}

	for _, s := range steps {
		sr, err := s.run(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		log.Debugf("step %s: %s %s", sr.Name, sr.Outcome, sr.Ref)
		result.Steps = append(result.Steps, sr)
	}

	// The CI secrets the caller must persist, named so every output format
	// carries them.
	result.Secrets = []Secret{
		{Name: "AWS_ROLE_TO_ASSUME", Value: result.RoleARN},
		{Name: "AWS_REGION", Value: result.Region},
		{Name: "ECR_REPOSITORY", Value: result.Repository},
	}

	return result, nil
}

// ensureProvider checks for the GitHub Actions OIDC provider by scanning the
// provider list (the IAM API returns it unpaginated) and creates it when
// absent or when CreateProvider forces it. A duplicate-resource error from
// the create call is success, not failure.
func (w *Workflow) ensureProvider(ctx context.Context, result *Result) (StepResult, error) {
	sr := StepResult{Name: "oidc-provider"}

	out, err := w.iam.ListOpenIDConnectProviders(ctx, &iam.ListOpenIDConnectProvidersInput{})
	if err != nil {
		return sr, err
	}

	var existing string
	for _, p := range out.OpenIDConnectProviderList {
		if strings.HasSuffix(awsv2.ToString(p.Arn), "/"+policy.IssuerHost) {
			existing = awsv2.ToString(p.Arn)
			break
		}
	}

	if existing != "" && !w.cfg.CreateProvider {
		sr.Outcome = OutcomeExists
		sr.Ref = existing
		result.ProviderARN = sr.Ref
		return sr, nil
	}

	created, err := w.iam.CreateOpenIDConnectProvider(ctx, &iam.CreateOpenIDConnectProviderInput{
		Url:            awsv2.String(policy.IssuerURL),
		ClientIDList:   []string{policy.Audience},
		ThumbprintList: []string{policy.Thumbprint},
	})
	switch {
	case err == nil:
		sr.Outcome = OutcomeCreated
		sr.Ref = awsv2.ToString(created.OpenIDConnectProviderArn)
	case alreadyExists(err):
		sr.Outcome = OutcomeExists
		sr.Ref = policy.ProviderARN(w.cfg.AccountID)
	default:
		return sr, err
	}

	result.ProviderARN = sr.Ref
	return sr, nil
}

// ensureRole creates the role with the trust policy when absent. An existing
// role is left untouched; its live trust document is only compared against
// the desired one so drift is reported rather than silently rewritten.
func (w *Workflow) ensureRole(ctx context.Context, result *Result) (StepResult, error) {
	sr := StepResult{Name: "role"}

	trust, err := policy.Trust(w.cfg.AccountID, w.cfg.SourceRepo).JSON()
	if err != nil {
		return sr, err
	}
	artifact, err := writeArtifact(w.cfg.OutDir, TrustPolicyFile, trust)
	if err != nil {
		return sr, err
	}
	result.Artifacts = append(result.Artifacts, artifact)

	got, err := w.iam.GetRole(ctx, &iam.GetRoleInput{
		RoleName: awsv2.String(w.cfg.RoleName),
	})
	if err == nil {
		sr.Outcome = OutcomeExists
		sr.Ref = awsv2.ToString(got.Role.Arn)
		result.RoleARN = sr.Ref

		drift, derr := trustDrift(awsv2.ToString(got.Role.AssumeRolePolicyDocument), trust)
		if derr != nil {
			log.WithError(derr).Warnf("could not compare trust policy of existing role %s", w.cfg.RoleName)
		} else if drift != "" {
			log.Warnf("role %s already exists with a different trust policy; leaving it unmodified", w.cfg.RoleName)
			result.TrustDrift = drift
		}
		return sr, nil
	}

	var nse *iamtypes.NoSuchEntityException
	if !errors.As(err, &nse) {
		return sr, err
	}

	created, err := w.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awsv2.String(w.cfg.RoleName),
		AssumeRolePolicyDocument: awsv2.String(string(trust)),
		Description:              awsv2.String(fmt.Sprintf("ECR push role for GitHub Actions runs of %s", w.cfg.SourceRepo)),
	})
	switch {
	case err == nil:
		sr.Outcome = OutcomeCreated
		sr.Ref = awsv2.ToString(created.Role.Arn)
	case alreadyExists(err):
		// Lost a race with another invocation; the role is there.
		sr.Outcome = OutcomeExists
		sr.Ref = policy.RoleARN(w.cfg.AccountID, w.cfg.RoleName)
	default:
		return sr, err
	}

	result.RoleARN = sr.Ref
	return sr, nil
}

// putRolePolicy attaches the permission document as an inline policy,
// replacing any prior policy of the same name.
func (w *Workflow) putRolePolicy(ctx context.Context, result *Result) (StepResult, error) {
	sr := StepResult{Name: "role-policy"}

	perms, err := policy.Permissions(w.cfg.Region, w.cfg.AccountID, w.cfg.Repository).JSON()
	if err != nil {
		return sr, err
	}
	artifact, err := writeArtifact(w.cfg.OutDir, ECRPolicyFile, perms)
	if err != nil {
		return sr, err
	}
	result.Artifacts = append(result.Artifacts, artifact)

	_, err = w.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       awsv2.String(w.cfg.RoleName),
		PolicyName:     awsv2.String(policy.InlinePolicyName),
		PolicyDocument: awsv2.String(string(perms)),
	})
	if err != nil {
		return sr, err
	}

	sr.Outcome = OutcomeReplaced
	sr.Ref = policy.InlinePolicyName
	return sr, nil
}

// ensureRepository describes the target ECR repository and creates it on
// demand when missing.
func (w *Workflow) ensureRepository(ctx context.Context, result *Result) (StepResult, error) {
	sr := StepResult{Name: "repository"}

	out, err := w.ecr.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{w.cfg.Repository},
	})
	if err == nil && len(out.Repositories) > 0 {
		sr.Outcome = OutcomeExists
		sr.Ref = awsv2.ToString(out.Repositories[0].RepositoryArn)
		result.RepositoryARN = sr.Ref
		result.RepositoryURI = awsv2.ToString(out.Repositories[0].RepositoryUri)
		return sr, nil
	}

	var nf *ecrtypes.RepositoryNotFoundException
	if err != nil && !errors.As(err, &nf) {
		return sr, err
	}

	created, err := w.ecr.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: awsv2.String(w.cfg.Repository),
	})
	switch {
	case err == nil:
		sr.Outcome = OutcomeCreated
		sr.Ref = awsv2.ToString(created.Repository.RepositoryArn)
		result.RepositoryURI = awsv2.ToString(created.Repository.RepositoryUri)
	case alreadyExists(err):
		sr.Outcome = OutcomeExists
		sr.Ref = policy.RepositoryARN(w.cfg.Region, w.cfg.AccountID, w.cfg.Repository)
	default:
		return sr, err
	}

	result.RepositoryARN = sr.Ref
	return sr, nil
}

// Preflight verifies that credentials resolve and that the caller account is
// the configured one, before any mutating call. Failures are precondition
// errors, mirroring how the original tooling refused to run without its CLI.
func Preflight(ctx context.Context, creds awsv2.CredentialsProvider, stsAPI STSAPI, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := creds.Retrieve(ctx); err != nil {
		return &PreconditionError{
			Reason: fmt.Sprintf("AWS credentials are not resolvable: %v", err),
		}
	}

	ident, err := stsAPI.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return &PreconditionError{
			Reason: fmt.Sprintf("STS caller identity check failed: %v", err),
		}
	}

	if got := awsv2.ToString(ident.Account); got != cfg.AccountID {
		return &PreconditionError{
			Reason: fmt.Sprintf("credentials belong to account %s, not configured account %s", got, cfg.AccountID),
		}
	}

	return nil
}

// WriteDocuments renders and writes both policy documents to cfg.OutDir
// without any remote call.
func WriteDocuments(cfg Config) ([]Artifact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	trust, err := policy.Trust(cfg.AccountID, cfg.SourceRepo).JSON()
	if err != nil {
		return nil, err
	}
	perms, err := policy.Permissions(cfg.Region, cfg.AccountID, cfg.Repository).JSON()
	if err != nil {
		return nil, err
	}

	var artifacts []Artifact
	for _, doc := range []struct {
		name string
		data []byte
	}{
		{TrustPolicyFile, trust},
		{ECRPolicyFile, perms},
	} {
		a, err := writeArtifact(cfg.OutDir, doc.name, doc.data)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}

	return artifacts, nil
}

// writeArtifact stores a policy document beneath dir and reports its
// humanized size.
func writeArtifact(dir, name string, data []byte) (Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return Artifact{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:mnd
		return Artifact{}, fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Debugf("wrote %s (%s)", path, humanize.Bytes(uint64(len(data))))
	return Artifact{Path: path, Size: humanize.Bytes(uint64(len(data)))}, nil
}
