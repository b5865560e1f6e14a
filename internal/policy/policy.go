// Package policy maps tools and operating modes to risk levels, scopes,
// and approval requirements. All functions are pure; this is the
// security-relevant contract of the whole system and the approval matrix
// must not be changed without changing the tests that pin it.
package policy

import (
	"strings"

	"github.com/axionhq/axion/internal/domain"
)

// Scope tags grantable per operating mode.
const (
	ScopeSystemRead          = "system.read"
	ScopeAppsOpen            = "apps.open"
	ScopeFilesSandboxRW      = "files.sandbox_rw"
	ScopeBrowserBasic        = "browser.basic"
	ScopeFilesOutsideSandbox = "files.outside_sandbox"
)

// ToolPrivilegeRequest is the privilege-elevation request tool. It is
// always high risk and never auto-executed.
const ToolPrivilegeRequest = "privilege.request"

// toolSystemTime is the one benign informational system tool.
const toolSystemTime = "system.time"

// AllowedScopes returns the scope set granted to a session in the given
// mode. The sets form a strict lattice: paranoid ⊂ normal ⊂ hands_free.
func AllowedScopes(mode domain.Mode) []string {
	switch mode {
	case domain.ModeParanoid:
		return []string{ScopeSystemRead}
	case domain.ModeHandsFree:
		return []string{
			ScopeAppsOpen,
			ScopeSystemRead,
			ScopeFilesSandboxRW,
			ScopeBrowserBasic,
			ScopeFilesOutsideSandbox,
		}
	default: // normal
		return []string{
			ScopeAppsOpen,
			ScopeSystemRead,
			ScopeFilesSandboxRW,
			ScopeBrowserBasic,
		}
	}
}

// ClassifyRisk derives the risk level from the tool name's namespace
// prefix. Risk is deliberately coarse-grained per tool, not per
// invocation: argument content is ignored.
func ClassifyRisk(tool string) domain.Risk {
	switch {
	case strings.HasPrefix(tool, "system.") && tool != toolSystemTime:
		return domain.RiskHigh
	case tool == ToolPrivilegeRequest:
		return domain.RiskHigh
	case strings.HasPrefix(tool, "files."):
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// NeedsApproval reports whether an action of the given risk requires an
// explicit human decision in the given mode.
//
//	            low    medium  high
//	paranoid    yes    yes     yes
//	normal      no     yes     yes
//	hands_free  no     no      yes
func NeedsApproval(risk domain.Risk, mode domain.Mode) bool {
	switch mode {
	case domain.ModeParanoid:
		return true
	case domain.ModeHandsFree:
		return risk == domain.RiskHigh
	default: // normal
		return risk == domain.RiskMedium || risk == domain.RiskHigh
	}
}
