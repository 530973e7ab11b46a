// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

// The desktop configuration bridge exchanges these shapes with its UI. Only
// the data is defined here; reading and writing the underlying files is not
// part of this module.

// EnvConfig is the active base URL and token exported in the shell profile.
type EnvConfig struct {
	CSBaseURL   string `json:"cs_base_url"`
	CSAuthToken string `json:"cs_auth_token"`
}

// ConfigGroup is one saved base URL and token pair. Exactly one group of a
// list is active.
type ConfigGroup struct {
	BaseURL   string `json:"base_url"`
	AuthToken string `json:"auth_token"`
	Active    bool   `json:"active"`
}

// ConfigGroups is an ordered list of saved groups.
type ConfigGroups []ConfigGroup

// Active returns the index of the active group, or -1.
func (g ConfigGroups) Active() int {
	for i, group := range g {
		if group.Active {
			return i
		}
	}
	return -1
}

// Switch marks the group at index active and every other group inactive.
// It reports false when index is out of range.
func (g ConfigGroups) Switch(index int) bool {
	if index < 0 || index >= len(g) {
		return false
	}
	for i := range g {
		g[i].Active = i == index
	}
	return true
}

// AnthropicConfig is the endpoint and token an Anthropic client is pointed at.
type AnthropicConfig struct {
	BaseURL   string `json:"base_url"`
	AuthToken string `json:"auth_token"`
}

// CodexConfig is the endpoint and API key a Codex-style client is pointed at.
type CodexConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}
