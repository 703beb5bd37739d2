// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/harina-30/ecrctl/internal/meta"
	"github.com/harina-30/ecrctl/internal/output"
	"github.com/harina-30/ecrctl/internal/policy"
	"github.com/harina-30/ecrctl/internal/provision"
)

// PolicyDocuments is the rendered pair of documents the workflow would use.
type PolicyDocuments struct {
	Trust       policy.Document `json:"trust"`
	Permissions policy.Document `json:"permissions"`
}

func PolicyCommandAction(ctx context.Context, cmd *cli.Command) error {
	meta := GetMeta(cmd)
	log.Debugf("Executing action for %v", meta.Args[1:])

	if ShortCircuitTLDR(ctx, cmd, "policy") {
		return nil
	}

	pcfg := ProvisionConfig(cmd)
	if err := pcfg.Validate(); err != nil {
		return err
	}

	docs := PolicyDocuments{
		Trust:       policy.Trust(pcfg.AccountID, pcfg.SourceRepo),
		Permissions: policy.Permissions(pcfg.Region, pcfg.AccountID, pcfg.Repository),
	}

	if cmd.Bool("write") {
		artifacts, err := provision.WriteDocuments(pcfg)
		if err != nil {
			return err
		}
		for _, a := range artifacts {
			log.Infof("wrote %s (%s)", a.Path, a.Size)
		}
	}

	// Text mode prints the documents verbatim; they are reviewed as JSON.
	if cmd.String("output") == "text" {
		for _, d := range []struct {
			name string
			doc  policy.Document
		}{
			{"trust policy", docs.Trust},
			{"permission policy", docs.Permissions},
		} {
			out, err := d.doc.JSON()
			if err != nil {
				return err
			}
			fmt.Printf("-- %s --\n%s\n", d.name, out)
		}
		return nil
	}

	return output.Spit(docs, cmd, nil)
}

func PolicyCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "policy",
		Usage:     "render the policy documents without any AWS call",
		UsageText: `ecrctl policy [@set] [options]`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Flags: append([]cli.Flag{
			NewAccountFlag("policy"),
			NewRegionFlag("policy"),
			NewRepoFlag("policy"),
			NewSourceRepoFlag("policy"),
			NewRoleFlag("policy"),
			NewOutDirFlag("policy"),
			&cli.BoolFlag{
				Name:        "write",
				Usage:       "also write the documents to the output directory",
				HideDefault: true,
			},
			tldrFlag,
		}, NewGlobalFlags("policy")...),
		Action: PolicyCommandAction,
	}
}
