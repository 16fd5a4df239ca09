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

package schema

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/lain-cli/lain/pkg/errors"
	"github.com/lain-cli/lain/pkg/values"
)

var hostAliasSchema = &Schema{
	Name:   "HostAlias",
	Strict: true,
	Fields: []Field{
		{Name: "ip", Type: TypeString, Required: true},
		{Name: "hostnames", Type: TypeList, Required: true, Elem: &Field{Type: TypeString}},
	},
}

// ClusterConfig describes values-<cluster>.yaml in the internal values
// directory. Keys not declared here, such as registry or prometheus, are kept.
var ClusterConfig = &Schema{
	Name: "cluster config",
	Fields: []Field{
		{Name: "domain", Type: TypeString, Default: str("")},
		{Name: "domain_suffix", Type: TypeString, Default: str("")},
		{Name: "extra_docs", Type: TypeString},
		{Name: "secrets_env", Type: TypeMap, Nullable: true},
		{Name: "hostAliases", Type: TypeList, Elem: &Field{Type: TypeObject, Schema: hostAliasSchema}},
	},
	PostLoad: []PostLoadFunc{trimExtraDocs, resolveSecretsEnv},
}

func trimExtraDocs(data values.Tree, _ LoadContext) error {
	if s, ok := data["extra_docs"].(string); ok {
		data["extra_docs"] = strings.TrimSpace(s)
	}
	return nil
}

// resolveSecretsEnv reads every secrets_env entry from the environment, but
// only for the cluster in use. Each entry is an env name or {env_name, hint}.
func resolveSecretsEnv(data values.Tree, lc LoadContext) error {
	if !lc.IsCurrent {
		return nil
	}
	secrets, _ := data["secrets_env"].(map[string]any)
	delete(data, "secrets_env")

	dests := make([]string, 0, len(secrets))
	for d := range secrets {
		dests = append(dests, d)
	}
	sort.Strings(dests)

	for _, dest := range dests {
		var envName, hint string
		switch t := secrets[dest].(type) {
		case string:
			envName = t
		case map[string]any:
			envName, _ = t["env_name"].(string)
			hint, _ = t["hint"].(string)
		}
		if envName == "" {
			return fmt.Errorf("secrets_env.%s must be an env name or {env_name, hint}", dest)
		}

		v, ok := lc.lookupEnv(envName)
		if !ok {
			err := apperrors.NewWithContext(apperrors.ErrCodeMissingValue,
				fmt.Sprintf("environment variable %s is missing", envName),
				map[string]any{"dest": dest})
			if hint != "" {
				err = err.WithHint(hint)
			}
			return err
		}
		data[dest] = v
	}
	return nil
}
