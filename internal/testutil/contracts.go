package testutil

// Solidity sources used across package tests. VulnerableVault trips the
// reentrancy, unchecked-call, and access-control checks; SafeVault should
// come back clean from the reentrancy and unchecked-call checks.

const VulnerableVault = `pragma solidity ^0.7.6;

contract VulnerableVault {
    mapping(address => uint256) public balances;
    address public owner;

    function deposit() public payable {
        balances[msg.sender] = balances[msg.sender] + msg.value;
    }

    function withdraw(uint256 amount) public {
        require(balances[msg.sender] >= amount);
        msg.sender.call{value: amount}("");
        balances[msg.sender] = balances[msg.sender] - amount;
    }

    function destroy() public {
        selfdestruct(payable(msg.sender));
    }
}
`

const SafeVault = `pragma solidity ^0.8.19;

contract SafeVault {
    mapping(address => uint256) public balances;
    address public owner;

    modifier onlyOwner() {
        require(msg.sender == owner, "not owner");
        _;
    }

    constructor() {
        owner = msg.sender;
    }

    function deposit() external payable {
        balances[msg.sender] += msg.value;
    }

    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount, "insufficient");
        balances[msg.sender] -= amount;
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok, "transfer failed");
    }
}
`
