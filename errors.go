// errors.go: structured error definitions for the go-plugrack system
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"github.com/agilira/go-errors"
)

// Error codes for the go-plugrack system
const (
	// Caller misuse errors (1000-1099)
	ErrCodeInvalidArgument = "RACK_1001"
	ErrCodeEmptyPath       = "RACK_1002"
	ErrCodeMalformedPath   = "RACK_1003"
	ErrCodeEmptyType       = "RACK_1004"

	// Security policy errors (1100-1199)
	ErrCodeValidationRejected = "RACK_1101"
	ErrCodeTypeRejected       = "RACK_1102"
	ErrCodeOwnerUnsupported   = "RACK_1103"

	// Lifecycle errors (1200-1299)
	ErrCodePluginNotFound = "RACK_1201"
	ErrCodeLoadFailed     = "RACK_1202"
	ErrCodeUnknownHandle  = "RACK_1203"
	ErrCodeStillInUse     = "RACK_1204"
	ErrCodePeekFailed     = "RACK_1205"

	// Discovery errors (1300-1399)
	ErrCodeScanFailed = "RACK_1301"

	// Configuration errors (1400-1499)
	ErrCodeConfigPathError  = "RACK_1401"
	ErrCodeConfigFileError  = "RACK_1402"
	ErrCodeConfigParseError = "RACK_1403"
	ErrCodeConfigInvalid    = "RACK_1404"
	ErrCodeConfigWatcher    = "RACK_1405"

	// Filter chain errors (1500-1599)
	ErrCodeFilterBindFailed = "RACK_1501"
	ErrCodeFilterRejected   = "RACK_1502"
	ErrCodeChainClosed      = "RACK_1503"
)

// Caller misuse error constructors

func NewInvalidArgumentError(argument string) *errors.Error {
	return errors.New(ErrCodeInvalidArgument, "Invalid argument").
		WithUserMessage("A required argument is missing or empty").
		WithContext("argument", argument).
		WithSeverity("error")
}

func NewEmptyPathError() *errors.Error {
	return errors.New(ErrCodeEmptyPath, "Empty plugin path").
		WithUserMessage("Plugin path is required and cannot be empty").
		WithSeverity("error")
}

func NewMalformedPathError(path string) *errors.Error {
	return errors.New(ErrCodeMalformedPath, "Malformed plugin path").
		WithUserMessage("Plugins must be referenced by fully-qualified pathnames").
		WithContext("path", path).
		WithSeverity("error")
}

func NewEmptyTypeError() *errors.Error {
	return errors.New(ErrCodeEmptyType, "Empty plugin type").
		WithUserMessage("A fully-qualified plugin type is required").
		WithSeverity("error")
}

// Security policy error constructors

func NewValidationRejectedError(path string, reason string) *errors.Error {
	return errors.New(ErrCodeValidationRejected, "Paranoia validation rejected: "+reason).
		WithUserMessage("The plugin file failed the rack's security policy").
		WithContext("path", path).
		WithSeverity("error")
}

func NewTypeRejectedError(declaredType, majorType string) *errors.Error {
	return errors.New(ErrCodeTypeRejected, "Plugin type rejected").
		WithUserMessage("The plugin's declared type does not match the rack's major type").
		WithContext("declared_type", declaredType).
		WithContext("major_type", majorType).
		WithSeverity("error")
}

func NewOwnerCheckUnsupportedError(path string) *errors.Error {
	return errors.New(ErrCodeOwnerUnsupported, "Ownership check unsupported on this platform").
		WithUserMessage("File ownership validation is not available on this platform").
		WithContext("path", path).
		WithSeverity("error")
}

// Lifecycle error constructors

func NewPluginNotFoundError(fullType string) *errors.Error {
	return errors.New(ErrCodePluginNotFound, "Plugin not found").
		WithUserMessage("No plugin with the requested type is registered in this rack").
		WithContext("full_type", fullType).
		WithSeverity("error")
}

func NewLoadFailedError(fullType, path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeLoadFailed, "Plugin load failed").
		WithUserMessage("The module host could not load the plugin").
		WithContext("full_type", fullType).
		WithContext("path", path).
		WithSeverity("error")
}

func NewUnknownHandleError() *errors.Error {
	return errors.New(ErrCodeUnknownHandle, "Unknown plugin handle").
		WithUserMessage("The released handle does not belong to any plugin in this rack").
		WithSeverity("error")
}

func NewStillInUseError(fullType string, refCount int) *errors.Error {
	return errors.New(ErrCodeStillInUse, "Plugin still in use").
		WithUserMessage("The rack cannot be destroyed while plugins have active users").
		WithContext("full_type", fullType).
		WithContext("ref_count", refCount).
		WithSeverity("error")
}

func NewPeekFailedError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodePeekFailed, "Plugin type probe failed").
		WithUserMessage("The module host could not read the plugin's declared type").
		WithContext("path", path).
		WithSeverity("error")
}

// Discovery error constructors

func NewScanFailedError(dir string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeScanFailed, "Directory scan failed").
		WithUserMessage("The plugin directory could not be read").
		WithContext("dir", dir).
		WithSeverity("error")
}

// Configuration error constructors

func NewConfigPathError(path string, message string) *errors.Error {
	return errors.New(ErrCodeConfigPathError, "Configuration path error: "+message).
		WithUserMessage("Invalid rack configuration file path").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigFileError(path string, message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigFileError, "Configuration file error: "+message).
		WithUserMessage("Rack configuration file access failed").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigParseError(path string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigParseError, "Configuration parse error").
		WithUserMessage("Failed to parse rack configuration file").
		WithContext("config_path", path).
		WithSeverity("error")
}

func NewConfigInvalidError(message string, cause error) *errors.Error {
	err := errors.New(ErrCodeConfigInvalid, "Invalid configuration: "+message).
		WithUserMessage("Rack configuration validation failed").
		WithSeverity("error")
	if cause != nil {
		return errors.Wrap(cause, ErrCodeConfigInvalid, "Invalid configuration: "+message).
			WithUserMessage("Rack configuration validation failed").
			WithSeverity("error")
	}
	return err
}

func NewConfigWatcherError(message string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeConfigWatcher, "Configuration watcher error: "+message).
		WithUserMessage("Rack configuration monitoring failed").
		WithSeverity("error")
}

// Filter chain error constructors

func NewFilterBindFailedError(fullType string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeFilterBindFailed, "Filter binding failed").
		WithUserMessage("The plugin does not export the required filter function table").
		WithContext("full_type", fullType).
		WithSeverity("error")
}

func NewFilterRejectedError(fullType string, cause error) *errors.Error {
	return errors.Wrap(cause, ErrCodeFilterRejected, "Submission rejected by filter").
		WithUserMessage("A filter plugin rejected the submission").
		WithContext("full_type", fullType).
		WithSeverity("warning")
}

func NewChainClosedError() *errors.Error {
	return errors.New(ErrCodeChainClosed, "Filter chain closed").
		WithUserMessage("The filter chain has been closed and cannot be used").
		WithSeverity("error")
}
