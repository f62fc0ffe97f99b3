package settlement

import (
	"context"

	apperrors "github.com/gemfall/arcade/internal/errors"
	"github.com/gemfall/arcade/internal/services/arcade/storage"
)

// Unconfigured stands in for the external collaborators when the deployment
// has no resolver or chain settings. Every settlement attempt fails with
// CodeConfigMissing instead of silently pretending to pay out.
type Unconfigured struct{}

// ResolveAddress always fails with CodeConfigMissing.
func (Unconfigured) ResolveAddress(context.Context, string) (string, error) {
	return "", apperrors.New(apperrors.CodeConfigMissing, "address resolver is not configured")
}

// Transfer always fails with CodeConfigMissing.
func (Unconfigured) Transfer(context.Context, string, int) (storage.TransferReceipt, error) {
	return storage.TransferReceipt{}, apperrors.New(apperrors.CodeConfigMissing, "token transfer is not configured")
}
