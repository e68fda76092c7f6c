package server

// uploadContractRequest is the body for POST /contracts.
type uploadContractRequest struct {
	Name       string `json:"name"`
	SourceCode string `json:"source_code"`
}

// startScanRequest is the body for POST /scans. Either ContractID references
// an already uploaded contract, or Name+SourceCode upload one inline.
type startScanRequest struct {
	ContractID string `json:"contract_id,omitempty"`
	Name       string `json:"name,omitempty"`
	SourceCode string `json:"source_code,omitempty"`
}
