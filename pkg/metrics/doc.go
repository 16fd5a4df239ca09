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

// Package metrics reads resource usage of app procs from Prometheus and
// turns it into suggestions for the requests and limits in values.yaml.
//
// Queries come from the pql_template section of the cluster config. They
// are format strings with {appname}, {proc_name} and {range} placeholders,
// where a doubled brace stands for a literal one.
package metrics
