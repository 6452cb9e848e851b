// Package network provides the security-group rule pack.
package network

import "github.com/pankaj-dahiya-devops/secops-audit/internal/rules"

// New returns the default network exposure rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.SecurityGroupOpenRemoteAccessRule{}, // HIGH: SSH/RDP open to the world
	}
}
