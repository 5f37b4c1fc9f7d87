// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads the two configuration files of protpipe.
//
// The tools file maps each tool to its interpreter and entry script and can be
// overridden per tool with PROTPIPE_<TOOL>_PYTHON and PROTPIPE_<TOOL>_SCRIPT,
// which may come from a .env file. The pipeline file is YAML or, with a .hcl
// extension, HCL, and may be fetched from any go-getter source.
package config
