// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/aws"
	"github.com/harina-30/ecrctl/internal/meta"
	"github.com/harina-30/ecrctl/internal/output"
	"github.com/harina-30/ecrctl/internal/provision"
)

func ApplyCommandAction(ctx context.Context, cmd *cli.Command) error {
	meta := GetMeta(cmd)
	log.Debugf("Executing action for %v", meta.Args[1:])

	// Bail out early if we're just dumping tldr.
	if ShortCircuitTLDR(ctx, cmd, "apply") {
		return nil
	}

	pcfg := ProvisionConfig(cmd)
	if err := pcfg.Validate(); err != nil {
		return err
	}

	awscfg, err := aws.LoadAWSConfig(ctx,
		aws.WithRegion(pcfg.Region),
		aws.WithProfile(cmd.String("profile")))
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	// No remote mutation before the pre-flight passes.
	if err := provision.Preflight(ctx, awscfg.Credentials, aws.NewSTS(awscfg), pcfg); err != nil {
		return err
	}

	wf := provision.New(pcfg, aws.NewIAM(awscfg), aws.NewECR(awscfg))
	result, err := wf.Run(ctx)
	if err != nil {
		return err
	}

	if err := output.Spit(result, cmd, os.Stdout); err != nil {
		return err
	}

	if cmd.String("output") == "text" {
		printNextSteps(result, cmd)
	}

	return nil
}

// printNextSteps names the CI secrets to populate and the artifacts written
// for review. Only rendered in text mode; structured outputs carry the same
// data in the result document.
func printNextSteps(result *provision.Result, cmd *cli.Command) {
	fmt.Println()
	fmt.Println("Set these GitHub Actions repository secrets:")
	var rows [][2]string
	for _, s := range result.Secrets {
		rows = append(rows, [2]string{s.Name, s.Value})
	}
	output.TableWriter(rows, cmd, os.Stdout)

	fmt.Println()
	fmt.Println("Policy documents written for review:")
	for _, a := range result.Artifacts {
		fmt.Printf("  %s (%s)\n", a.Path, a.Size)
	}

	if result.TrustDrift != "" {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Existing role trust policy differs from the desired document:")
		fmt.Fprintln(os.Stderr, result.TrustDrift)
	}
}

func ApplyCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "apply",
		Usage:     "provision the OIDC provider, role, policy and repository",
		UsageText: `ecrctl apply [@set] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewAccountFlag("apply"),
			NewRegionFlag("apply"),
			NewRepoFlag("apply"),
			NewSourceRepoFlag("apply"),
			NewRoleFlag("apply"),
			NewProfileFlag("apply"),
			NewOutDirFlag("apply"),
			&cli.BoolFlag{
				Name:        "create-provider",
				Usage:       "create the OIDC provider even when one already exists",
				HideDefault: true,
			},
			tldrFlag,
		}, NewGlobalFlags("apply")...),
		Action: ApplyCommandAction,
	}
}
