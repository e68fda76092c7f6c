package rules

import (
	"strings"
	"testing"

	"github.com/oyerishi/smart-contract-auditor/internal/model"
	"github.com/oyerishi/smart-contract-auditor/internal/parser"
)

func analyze(t *testing.T, r Rule, source string) []model.Finding {
	t.Helper()
	return r.Analyze(parser.Parse(source))
}

// ─── Reentrancy ────────────────────────────────────────────────────────

func TestReentrancy_StateChangeAfterCall(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.7.0;
contract C {
    mapping(address => uint256) balances;
    function withdraw(uint256 amount) public {
        msg.sender.call{value: amount}("");
        balances[msg.sender] = 0;
    }
}
`
	findings := analyze(t, &ReentrancyRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Severity != model.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", f.Severity)
	}
	// Flagged at the state mutation, not at the call.
	if f.LineNumber != 6 {
		t.Errorf("expected line 6, got %d", f.LineNumber)
	}
	if f.SwcID != "SWC-107" || f.CweID != "CWE-841" {
		t.Errorf("unexpected taxonomy: %s %s", f.CweID, f.SwcID)
	}
	if f.Location != "C.withdraw" {
		t.Errorf("unexpected location %q", f.Location)
	}
	if !strings.Contains(f.CodeSnippet, "balances[msg.sender] = 0;") {
		t.Errorf("snippet should contain the flagged line, got %q", f.CodeSnippet)
	}
}

func TestReentrancy_ChecksEffectsInteractionsIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    mapping(address => uint256) balances;
    function withdraw(uint256 amount) public {
        balances[msg.sender] -= amount;
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok);
    }
}
`
	if findings := analyze(t, &ReentrancyRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

// ─── Unchecked calls ───────────────────────────────────────────────────

func TestUncheckedCall_Flagged(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    function pay(address payable to) public {
        to.send(1 ether);
    }
}
`
	findings := analyze(t, &UncheckedCallRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if !strings.Contains(findings[0].Title, "send") {
		t.Errorf("title should name the call type: %q", findings[0].Title)
	}
	if findings[0].SwcID != "SWC-104" {
		t.Errorf("expected SWC-104, got %s", findings[0].SwcID)
	}
}

func TestUncheckedCall_ReturnTupleIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    function pay(address payable to) public {
        (bool ok, ) = to.call{value: 1 ether}("");
        require(ok);
    }
}
`
	if findings := analyze(t, &UncheckedCallRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

func TestUncheckedCall_RequireWithinTwoLinesIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    bool sent;
    function pay(address payable to) public {
        sent = to.send(1 ether);
        emit Paid(to);
        require(sent, "send failed");
    }
}
`
	if findings := analyze(t, &UncheckedCallRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

func TestUncheckedCall_CapturedDelegatecallTupleIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    event Ran(address target);
    function run(address target, bytes memory payload) public {
        (bool ok, bytes memory out) = target.delegatecall(payload);
        emit Ran(target);
        emit Ran(target);
        require(ok, string(out));
    }
}
`
	if findings := analyze(t, &UncheckedCallRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings for captured delegatecall tuple, got %+v", findings)
	}
}

// ─── Access control ────────────────────────────────────────────────────

func TestAccessControl_TxOrigin(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    address owner;
    function guard() public {
        require(tx.origin == owner);
    }
}
`
	findings := analyze(t, &AccessControlRule{}, source)
	var txo *model.Finding
	for i := range findings {
		if strings.Contains(findings[i].Title, "tx.origin") {
			txo = &findings[i]
		}
	}
	if txo == nil {
		t.Fatalf("expected tx.origin finding, got %+v", findings)
	}
	if txo.Severity != model.SeverityHigh || txo.ConfidenceScore != 0.95 {
		t.Errorf("unexpected severity/confidence: %s %v", txo.Severity, txo.ConfidenceScore)
	}
	if txo.CweID != "CWE-863" {
		t.Errorf("expected CWE-863, got %s", txo.CweID)
	}
}

func TestAccessControl_UnprotectedSelfdestruct(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    function destroy() public {
        selfdestruct(payable(msg.sender));
    }
}
`
	findings := analyze(t, &AccessControlRule{}, source)
	var sd *model.Finding
	for i := range findings {
		if strings.Contains(findings[i].Title, "selfdestruct") {
			sd = &findings[i]
		}
	}
	if sd == nil {
		t.Fatalf("expected selfdestruct finding, got %+v", findings)
	}
	if sd.Severity != model.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", sd.Severity)
	}
}

func TestAccessControl_ModifierGuardIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    uint256 x;
    function set(uint256 v) public onlyOwner {
        x = v;
    }
}
`
	if findings := analyze(t, &AccessControlRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings for guarded function, got %+v", findings)
	}
}

func TestAccessControl_MissingControlOnStateChange(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    uint256 x;
    function set(uint256 v) public {
        x = v;
    }
    function get() public view returns (uint256) {
        return x;
    }
}
`
	findings := analyze(t, &AccessControlRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Severity != model.SeverityMedium || f.ConfidenceScore != 0.7 {
		t.Errorf("unexpected severity/confidence: %s %v", f.Severity, f.ConfidenceScore)
	}
	if !strings.Contains(f.Title, "set") {
		t.Errorf("expected the setter to be flagged, got %q", f.Title)
	}
}

// ─── Integer overflow ──────────────────────────────────────────────────

func TestIntegerOverflow_Pre080Arithmetic(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.7.6;
contract C {
    uint256 total;
    function add(uint256 v) public {
        total = total + v;
    }
}
`
	findings := analyze(t, &IntegerOverflowRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	if findings[0].Severity != model.SeverityHigh {
		t.Errorf("expected HIGH, got %s", findings[0].Severity)
	}
	if findings[0].LineNumber != 5 {
		t.Errorf("expected line 5, got %d", findings[0].LineNumber)
	}
}

func TestIntegerOverflow_SafeMathIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.7.6;
using SafeMath for uint256;
contract C {
    uint256 total;
    function add(uint256 v) public {
        total = total.add(v);
    }
}
`
	if findings := analyze(t, &IntegerOverflowRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings with SafeMath, got %+v", findings)
	}
}

func TestIntegerOverflow_Modern080IsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.19;
contract C {
    uint256 total;
    function add(uint256 v) public {
        total = total + v;
    }
}
`
	if findings := analyze(t, &IntegerOverflowRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings on 0.8+, got %+v", findings)
	}
}

func TestIntegerOverflow_UncheckedBlock(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.19;
contract C {
    uint256 total;
    function add(uint256 v) public {
        unchecked {
            total = total + v;
        }
    }
}
`
	findings := analyze(t, &IntegerOverflowRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Severity != model.SeverityMedium {
		t.Errorf("expected MEDIUM for unchecked block, got %s", findings[0].Severity)
	}
}

func TestIntegerOverflow_MissingPragmaTreatedAsOld(t *testing.T) {
	t.Parallel()
	source := `contract C {
    uint256 total;
    function add(uint256 v) public {
        total = total + v;
    }
}
`
	if findings := analyze(t, &IntegerOverflowRule{}, source); len(findings) == 0 {
		t.Error("missing pragma should be treated as pre-0.8")
	}
}

// ─── Randomness ────────────────────────────────────────────────────────

func TestRandomness_TimestampLottery(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    function pickWinner() public view returns (uint256) {
        return uint256(keccak256(abi.encodePacked(block.timestamp))) % 10;
    }
}
`
	findings := analyze(t, &RandomnessRule{}, source)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Severity != model.SeverityMedium || f.ConfidenceScore != 0.8 {
		t.Errorf("unexpected severity/confidence: %s %v", f.Severity, f.ConfidenceScore)
	}
	if f.SwcID != "SWC-120" || f.CweID != "CWE-330" {
		t.Errorf("unexpected taxonomy: %s %s", f.CweID, f.SwcID)
	}
}

func TestRandomness_BlockhashLowerConfidence(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    function random() public view returns (bytes32) {
        return blockhash(block.number - 1);
    }
}
`
	findings := analyze(t, &RandomnessRule{}, source)
	var bh *model.Finding
	for i := range findings {
		if strings.Contains(findings[i].Title, "blockhash") {
			bh = &findings[i]
		}
	}
	if bh == nil {
		t.Fatalf("expected blockhash finding, got %+v", findings)
	}
	if bh.ConfidenceScore != 0.75 {
		t.Errorf("expected confidence 0.75, got %v", bh.ConfidenceScore)
	}
}

func TestRandomness_TimestampOutsideRandomContextIsClean(t *testing.T) {
	t.Parallel()
	source := `pragma solidity ^0.8.0;
contract C {
    uint256 deadline;
    function extend() public {
        deadline = block.timestamp + 1 days;
    }
}
`
	if findings := analyze(t, &RandomnessRule{}, source); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}
