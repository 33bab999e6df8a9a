package observer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// ManifestEntry names one contract's deployed address and the path to its
// ABI JSON. A manifest file is a JSON array of these, one per contract this
// repo watches — the chain-artifacts collaborator spec.md §6 describes as
// external to the core.
type ManifestEntry struct {
	Name    string         `json:"name"`
	Address common.Address `json:"address"`
	ABIPath string         `json:"abi_path"`
}

// LoadManifest reads a contract manifest from path and splits it into the
// five well-known ContractAddresses plus the raw entry list (callers use the
// latter to collect ABI paths for LoadABIFiles). A contract name the loop
// doesn't recognize is ignored rather than rejected, so a manifest can carry
// extra entries this repo has no use for.
func LoadManifest(path string) ([]ManifestEntry, ContractAddresses, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ContractAddresses{}, fmt.Errorf("observer: read manifest %s: %w", path, err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, ContractAddresses{}, fmt.Errorf("observer: parse manifest %s: %w", path, err)
	}

	var addrs ContractAddresses
	for _, e := range entries {
		switch e.Name {
		case "VoterRegistry":
			addrs.VoterRegistry = e.Address
		case "FlareSystemsManager":
			addrs.FlareSystemsManager = e.Address
		case "FlareSystemsCalculator":
			addrs.FlareSystemsCalculator = e.Address
		case "Relay":
			addrs.Relay = e.Address
		case "Submission":
			addrs.Submission = e.Address
		}
	}
	return entries, addrs, nil
}
