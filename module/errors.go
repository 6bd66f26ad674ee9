package module

import (
	"errors"
	"fmt"
)

var (
	// ErrModuleNotFound indicates neither the override nor any candidate executable resolved.
	ErrModuleNotFound = errors.New("module: host module not found")
	// ErrNotInitialized is returned by MapActive before the first initialization.
	ErrNotInitialized = errors.New("module: not initialized")
	// ErrCleared is returned by MapActive after Reset.
	ErrCleared = errors.New("module: cleared")
	// ErrNoVersionResource indicates the image carries no RT_VERSION resource.
	ErrNoVersionResource = errors.New("module: no version resource")
	// ErrMalformedVersionInfo indicates a VS_VERSIONINFO block that cannot be walked.
	ErrMalformedVersionInfo = errors.New("module: malformed version info")
	// ErrTruncatedImage indicates the image is shorter than its headers claim.
	ErrTruncatedImage = errors.New("module: truncated image")
)

// InvalidDosHeaderSignatureError reports an image not starting with "MZ".
type InvalidDosHeaderSignatureError struct {
	Actual uint16
}

func (e *InvalidDosHeaderSignatureError) Error() string {
	return fmt.Sprintf("module: invalid DOS header signature 0x%04X (want 0x%04X)", e.Actual, dosSignature)
}

// InvalidNtHeader64SignatureError reports an NT header not starting with "PE\0\0".
type InvalidNtHeader64SignatureError struct {
	Actual uint32
}

func (e *InvalidNtHeader64SignatureError) Error() string {
	return fmt.Sprintf("module: invalid NT header signature 0x%08X (want 0x%08X)", e.Actual, ntSignature)
}

// InitError wraps a failure to determine the version of the module at Path.
type InitError struct {
	Path string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("module: load version of %s: %v", e.Path, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
