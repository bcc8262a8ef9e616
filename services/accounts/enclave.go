package accounts

import (
	"github.com/cradle-labs/cradle-core/platform/os"
	"github.com/cradle-labs/cradle-core/services/base"
)

// Enclave is a thin lifecycle-managed component alongside the store; today it
// carries no sealed state of its own but participates in start/stop/health
// the same way every service's enclave does.
type Enclave struct {
	*base.BaseEnclave
}

// NewEnclave creates a new accounts enclave.
func NewEnclave(serviceOS os.ServiceOS) *Enclave {
	return &Enclave{
		BaseEnclave: base.NewBaseEnclave(ServiceID, serviceOS),
	}
}
