// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/cloud-agnost/provisioner/pkg/manifest"
	"github.com/cloud-agnost/provisioner/pkg/provision"
)

// templateFamilies maps each shipped template to the family applying it.
var templateFamilies = map[string]provision.Family{
	manifest.TemplatePostgres:         provision.FamilyDatabase,
	manifest.TemplateMySQL:            provision.FamilyDatabase,
	manifest.TemplateMariaDB:          provision.FamilyDatabase,
	manifest.TemplateMongoDB:          provision.FamilyDatabase,
	manifest.TemplateRedisStandalone:  provision.FamilyCache,
	manifest.TemplateRedisReplication: provision.FamilyCache,
	manifest.TemplateBroker:           provision.FamilyBroker,
	manifest.TemplateIssuer:           provision.FamilyDomain,
}

// TemplateInfo summarizes one manifest template.
type TemplateInfo struct {
	ID     string   `json:"id"`
	Family string   `json:"family"`
	Kinds  []string `json:"kinds"`
}

func templatesCmd() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "Inspect the embedded manifest templates",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List template identifiers with the kinds they declare",
				Flags:  []cli.Flag{outputFlag(), formatFlag()},
				Action: listTemplates,
			},
			{
				Name:      "show",
				Usage:     "Print the descriptors of one template",
				ArgsUsage: "<template-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "Print the template source unchanged",
					},
					outputFlag(),
					formatFlag(),
				},
				Action: showTemplate,
			},
		},
	}
}

func listTemplates(ctx context.Context, cmd *cli.Command) error {
	infos, err := describeTemplates(manifest.NewLoader())
	if err != nil {
		return err
	}
	return writeOutput(ctx, cmd, infos)
}

func describeTemplates(l *manifest.Loader) ([]TemplateInfo, error) {
	ids, err := l.IDs()
	if err != nil {
		return nil, err
	}

	infos := make([]TemplateInfo, 0, len(ids))
	for _, id := range ids {
		descs, err := l.Load(id)
		if err != nil {
			return nil, err
		}
		info := TemplateInfo{ID: id, Family: "-", Kinds: make([]string, 0, len(descs))}
		if f, ok := templateFamilies[id]; ok {
			info.Family = familyTitle(f)
		}
		for _, d := range descs {
			info.Kinds = append(info.Kinds, d.RawKind())
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func showTemplate(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("template id is required")
	}
	l := manifest.NewLoader()

	if cmd.Bool("raw") {
		b, err := l.Source(id)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(b)
		return err
	}

	descs, err := l.Load(id)
	if err != nil {
		return err
	}
	objs := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		objs = append(objs, d.Object.Object)
	}
	return writeOutput(ctx, cmd, objs)
}
