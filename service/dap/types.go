package dap

import (
	"encoding/json"
	"fmt"
)

// LaunchConfig is the collection of launch request attributes recognized
// by the wtree DAP implementation.
type LaunchConfig struct {
	// Snapshot is the path of the snapshot to inspect. If it is not an
	// absolute path, it is interpreted relative to the working directory
	// of the wtree process. Defaults to the snapshot given on the
	// command line.
	Snapshot string `json:"snapshot,omitempty"`

	// StopOnEntry is accepted for compatibility with other adapters.
	// A snapshot is always stopped.
	StopOnEntry bool `json:"stopOnEntry,omitempty"`

	// ShowAddresses appends the address of every variable to its value.
	ShowAddresses bool `json:"showAddresses,omitempty"`
}

// unmarshalLaunchArgs decodes the arguments of a launch request.
func unmarshalLaunchArgs(input json.RawMessage, config *LaunchConfig) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, config); err != nil {
		if uerr, ok := err.(*json.UnmarshalTypeError); ok {
			// Format json.UnmarshalTypeError error string in our own way. E.g.,
			//   "json: cannot unmarshal number into Go struct field LaunchConfig.snapshot of type string"
			//   => "cannot unmarshal number into 'snapshot' of type string"
			return fmt.Errorf("cannot unmarshal %v into %q of type %v", uerr.Value, uerr.Field, uerr.Type.String())
		}
		return err
	}
	return nil
}
