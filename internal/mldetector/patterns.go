package mldetector

import "regexp"

// Pattern describes one detectable vulnerability class. Patterns are applied
// line by character position over the full source; CheckBefore / CheckAfter
// are mitigation probes around the match site that lower confidence and
// severity when they hit.
type Pattern struct {
	ID             string
	Name           string
	Description    string
	Severity       string
	Category       string
	CweID          string
	SwcID          string
	Recommendation string

	Match *regexp.Regexp

	// Exclude suppresses every match when it occurs anywhere in the source.
	Exclude *regexp.Regexp

	// CheckBefore scans the 500 characters preceding the match for an
	// existing mitigation. CheckAfter scans the 500 following.
	CheckBefore *regexp.Regexp
	CheckAfter  *regexp.Regexp
}

// patternTable lists the built-in vulnerability classes, in detection order.
var patternTable = []Pattern{
	{
		ID:             "reentrancy",
		Name:           "Reentrancy Vulnerability",
		Description:    "External call made before state changes, allowing reentrancy attacks",
		Severity:       "CRITICAL",
		Category:       "REENTRANCY",
		CweID:          "CWE-841",
		SwcID:          "SWC-107",
		Recommendation: "Use the checks-effects-interactions pattern. Update state variables before making external calls, or use ReentrancyGuard.",
		Match:          regexp.MustCompile(`(?im)\.call\{.*value.*\}|\.call\.value\(|\.send\(|\.transfer\(`),
		CheckBefore:    regexp.MustCompile(`(?i)(balances?\[|balance\s*[<>=]|require\s*\()`),
	},
	{
		ID:             "unchecked_call",
		Name:           "Unchecked External Call",
		Description:    "Return value of external call not checked",
		Severity:       "HIGH",
		Category:       "UNCHECKED_CALL",
		CweID:          "CWE-252",
		SwcID:          "SWC-104",
		Recommendation: "Always check return values of low-level calls: (bool success, ) = addr.call(...); require(success);",
		Match:          regexp.MustCompile(`(?im)\.call\(|\.delegatecall\(|\.staticcall\(`),
		CheckAfter:     regexp.MustCompile(`(?i)require\s*\(|if\s*\(.*success|assert\s*\(`),
	},
	{
		ID:             "tx_origin",
		Name:           "tx.origin Authentication",
		Description:    "Using tx.origin for authentication is vulnerable to phishing attacks",
		Severity:       "HIGH",
		Category:       "ACCESS_CONTROL",
		CweID:          "CWE-287",
		SwcID:          "SWC-115",
		Recommendation: "Use msg.sender instead of tx.origin for authentication.",
		Match:          regexp.MustCompile(`(?im)tx\.origin`),
	},
	{
		ID:             "selfdestruct",
		Name:           "Unprotected Selfdestruct",
		Description:    "selfdestruct can be called without proper access control",
		Severity:       "CRITICAL",
		Category:       "ACCESS_CONTROL",
		CweID:          "CWE-284",
		SwcID:          "SWC-106",
		Recommendation: "Add proper access control (e.g., onlyOwner modifier) to selfdestruct functions.",
		Match:          regexp.MustCompile(`(?im)selfdestruct\s*\(|suicide\s*\(`),
		CheckBefore:    regexp.MustCompile(`(?i)onlyOwner|require\s*\(.*owner|modifier.*owner`),
	},
	{
		ID:             "delegatecall",
		Name:           "Delegatecall Usage",
		Description:    "delegatecall executes code in the context of the calling contract",
		Severity:       "HIGH",
		Category:       "DELEGATECALL",
		CweID:          "CWE-829",
		SwcID:          "SWC-112",
		Recommendation: "Ensure delegatecall target is trusted. Never use user-supplied addresses with delegatecall.",
		Match:          regexp.MustCompile(`(?im)\.delegatecall\(`),
	},
	{
		ID:             "timestamp",
		Name:           "Timestamp Dependence",
		Description:    "Block timestamp can be manipulated by miners within ~15 seconds",
		Severity:       "MEDIUM",
		Category:       "TIME_MANIPULATION",
		CweID:          "CWE-829",
		SwcID:          "SWC-116",
		Recommendation: "Don't use block.timestamp for critical logic. For randomness, use Chainlink VRF or commit-reveal schemes.",
		Match:          regexp.MustCompile(`(?im)block\.timestamp`),
	},
	{
		ID:             "blockhash",
		Name:           "Blockhash Usage for Randomness",
		Description:    "Using blockhash for randomness is predictable and manipulable",
		Severity:       "MEDIUM",
		Category:       "RANDOMNESS",
		CweID:          "CWE-330",
		SwcID:          "SWC-120",
		Recommendation: "Use Chainlink VRF or other secure randomness sources.",
		Match:          regexp.MustCompile(`(?im)blockhash\s*\(|block\.blockhash`),
	},
	{
		ID:             "floating_pragma",
		Name:           "Floating Pragma",
		Description:    "Contract uses floating pragma which may compile with different versions",
		Severity:       "LOW",
		Category:       "VERSION",
		CweID:          "CWE-1103",
		SwcID:          "SWC-103",
		Recommendation: "Lock pragma to specific version: pragma solidity 0.8.19;",
		Match:          regexp.MustCompile(`(?im)pragma\s+solidity\s*\^`),
	},
	{
		ID:             "outdated_compiler",
		Name:           "Outdated Compiler Version",
		Description:    "Using outdated Solidity version with known vulnerabilities",
		Severity:       "MEDIUM",
		Category:       "VERSION",
		CweID:          "CWE-1103",
		SwcID:          "SWC-102",
		Recommendation: "Upgrade to Solidity 0.8.x for built-in overflow protection and security improvements.",
		Match:          regexp.MustCompile(`(?im)pragma\s+solidity\s*[\^>=]*\s*0\.[0-6]\.`),
	},
	{
		ID:             "dos_gas_limit",
		Name:           "Denial of Service - Gas Limit",
		Description:    "Unbounded loop may exceed block gas limit",
		Severity:       "MEDIUM",
		Category:       "DOS",
		CweID:          "CWE-400",
		SwcID:          "SWC-128",
		Recommendation: "Implement pagination or limit loop iterations. Use pull over push pattern.",
		Match:          regexp.MustCompile(`(?im)for\s*\([^)]*\.length|while\s*\(`),
	},
	{
		ID:             "signature_malleability",
		Name:           "Signature Malleability",
		Description:    "ecrecover is vulnerable to signature malleability",
		Severity:       "MEDIUM",
		Category:       "CRYPTOGRAPHY",
		CweID:          "CWE-347",
		SwcID:          "SWC-117",
		Recommendation: "Use OpenZeppelin's ECDSA library which handles signature malleability.",
		Match:          regexp.MustCompile(`(?im)ecrecover\s*\(`),
	},
	{
		ID:             "hardcoded_address",
		Name:           "Hardcoded Address",
		Description:    "Contract contains hardcoded address",
		Severity:       "INFO",
		Category:       "CODE_QUALITY",
		CweID:          "CWE-798",
		Recommendation: "Consider using constructor parameters or configurable addresses for flexibility.",
		Match:          regexp.MustCompile(`(?im)0x[a-fA-F0-9]{40}`),
		Exclude:        regexp.MustCompile(`(?i)address\s*\(\s*0\s*\)|0x0{40}`),
	},
	{
		ID:             "assembly_usage",
		Name:           "Assembly Usage",
		Description:    "Contract uses inline assembly which bypasses safety checks",
		Severity:       "INFO",
		Category:       "CODE_QUALITY",
		Recommendation: "Ensure assembly code is thoroughly audited. Document why assembly is necessary.",
		Match:          regexp.MustCompile(`(?im)assembly\s*\{`),
	},
}
