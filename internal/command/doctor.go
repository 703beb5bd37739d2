// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/aws"
	"github.com/harina-30/ecrctl/internal/meta"
	"github.com/harina-30/ecrctl/internal/output"
)

// Check is a single pre-flight probe result.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// DoctorReport is the full set of probe results.
type DoctorReport struct {
	Checks []Check `json:"checks"`
	OK     bool    `json:"ok"`
}

func DoctorCommandAction(ctx context.Context, cmd *cli.Command) error {
	meta := GetMeta(cmd)
	log.Debugf("Executing action for %v", meta.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "doctor") {
		return nil
	}

	report := DoctorReport{OK: true}
	add := func(name string, ok bool, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, OK: ok, Detail: detail})
		report.OK = report.OK && ok
	}

	if meta.Config.Source != "" {
		add("config file", true, meta.Config.Source)
	} else {
		add("config file", false, "no ecrctl.yaml found (flags/env only)")
	}

	pcfg := ProvisionConfig(cmd)
	if err := pcfg.Validate(); err != nil {
		add("configuration", false, err.Error())
	} else {
		add("configuration", true, fmt.Sprintf("role %s, repo %s", pcfg.RoleName, pcfg.Repository))
	}

	awscfg, err := aws.LoadAWSConfig(ctx,
		aws.WithRegion(pcfg.Region),
		aws.WithProfile(cmd.String("profile")))
	if err != nil {
		add("aws config", false, err.Error())
	} else {
		add("aws config", true, awscfg.Region)

		if _, err := awscfg.Credentials.Retrieve(ctx); err != nil {
			add("credentials", false, err.Error())
		} else {
			add("credentials", true, "")

			ident, err := aws.NewSTS(awscfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			switch {
			case err != nil:
				add("caller identity", false, err.Error())
			case pcfg.AccountID != "" && awsv2.ToString(ident.Account) != pcfg.AccountID:
				add("caller identity", false, fmt.Sprintf(
					"credentials belong to account %s, not %s",
					awsv2.ToString(ident.Account), pcfg.AccountID))
			default:
				add("caller identity", true, awsv2.ToString(ident.Arn))
			}
		}
	}

	if cmd.String("output") == "text" {
		var rows [][2]string
		for _, c := range report.Checks {
			status := "ok"
			if !c.OK {
				status = "FAIL"
			}
			detail := c.Detail
			if detail != "" {
				detail = " " + detail
			}
			rows = append(rows, [2]string{c.Name, status + detail})
		}
		output.TableWriter(rows, cmd, os.Stdout)
	} else {
		if err := output.Spit(report, cmd, os.Stdout); err != nil {
			return err
		}
	}

	if !report.OK {
		return fmt.Errorf("doctor found problems")
	}
	return nil
}

func DoctorCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "doctor",
		Usage:     "pre-flight checks without touching any resource",
		UsageText: `ecrctl doctor [@set] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewAccountFlag("doctor"),
			NewRegionFlag("doctor"),
			NewRepoFlag("doctor"),
			NewSourceRepoFlag("doctor"),
			NewRoleFlag("doctor"),
			NewProfileFlag("doctor"),
			tldrFlag,
		}, NewGlobalFlags("doctor")...),
		Action: DoctorCommandAction,
	}
}
