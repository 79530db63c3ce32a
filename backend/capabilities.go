package backend

// BackendCapability represents a capability that a backend can provide

import "slices"

type BackendCapability string

const (
	// Core capabilities by backend
	CapabilityStorage BackendCapability = "storage"
	CapabilityLock    BackendCapability = "lock"

	// Extension capabilities
	CapabilityEncrypt      BackendCapability = "encrypt"
	CapabilityHierarchy    BackendCapability = "hierarchy"
	CapabilityTransactions BackendCapability = "transactions"
	CapabilityPersistent   BackendCapability = "persistent"
	CapabilityRemote       BackendCapability = "remote"
)

func GetAllCapabilities() *BackendCapabilities {
	return &BackendCapabilities{
		Capabilities: []BackendCapability{
			CapabilityStorage,
			CapabilityLock,
			CapabilityEncrypt,
			CapabilityHierarchy,
			CapabilityTransactions,
			CapabilityPersistent,
			CapabilityRemote,
		},
	}
}

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities  []BackendCapability `json:"capabilities"`
	MaxObjectSize int64               `json:"max_object_size"`
}

// Contains checks if a capability is supported
func (bc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(bc.Capabilities, cap)
}
