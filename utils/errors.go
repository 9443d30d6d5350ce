package utils

import (
	"github.com/pkg/errors"
)

// NewUnsupportedExtensionError is used when a file cannot be handled because of its extension.
func NewUnsupportedExtensionError(kind, ext string) error {
	return errors.Errorf("unsupported %s file extension %q", kind, ext)
}
