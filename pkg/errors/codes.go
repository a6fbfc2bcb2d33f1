package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal        ErrorCode = "COMMON_001"
	ErrCodeBadRequest      ErrorCode = "COMMON_002"
	ErrCodeNotFound        ErrorCode = "COMMON_005"
	ErrCodeTimeout         ErrorCode = "COMMON_009"
	ErrCodeValidation      ErrorCode = "COMMON_010"
	ErrCodeSerialization   ErrorCode = "COMMON_011"
	ErrCodeCacheError      ErrorCode = "COMMON_013"
	ErrCodeExternalService ErrorCode = "COMMON_014"
	ErrCodeNotImplemented  ErrorCode = "COMMON_016"
)

// Aliases kept short for call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeCacheError   = ErrCodeCacheError
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Ligand Module Error Codes
const (
	ErrCodeLigandInput ErrorCode = "LIG_001"
	ErrCodeLigandIndex ErrorCode = "LIG_002"
	ErrCodeLigandType  ErrorCode = "LIG_003"
	ErrCodeLigandIO    ErrorCode = "LIG_004"
	ErrCodeLigandParse ErrorCode = "LIG_005"
)

// Structure Matcher Error Codes
const (
	ErrCodeMatchTimeout ErrorCode = "MCS_001"
	ErrCodeMatchFailure ErrorCode = "MCS_002"
)

// Scoring Module Error Codes
const (
	ErrCodeRuleConfigInvalid ErrorCode = "SCR_001"
	ErrCodeMatrixIncomplete  ErrorCode = "SCR_002"
)

// Network Module Error Codes
const (
	ErrCodeNetworkConnectivity ErrorCode = "NET_001"
	ErrCodeOverrideInvalid     ErrorCode = "NET_002"
	ErrCodeNetworkConfig       ErrorCode = "NET_003"
)

// ErrorCodeExitStatus maps ErrorCodes to CLI process exit statuses.
// Statuses follow sysexits(3) where a sensible one exists.
var ErrorCodeExitStatus = map[ErrorCode]int{
	ErrCodeInternal:        70, // EX_SOFTWARE
	ErrCodeBadRequest:      64, // EX_USAGE
	ErrCodeNotFound:        66, // EX_NOINPUT
	ErrCodeTimeout:         75, // EX_TEMPFAIL
	ErrCodeValidation:      78, // EX_CONFIG
	ErrCodeSerialization:   65, // EX_DATAERR
	ErrCodeCacheError:      69, // EX_UNAVAILABLE
	ErrCodeExternalService: 69,
	ErrCodeNotImplemented:  70,

	ErrCodeLigandInput: 65,
	ErrCodeLigandIndex: 70,
	ErrCodeLigandType:  70,
	ErrCodeLigandIO:    66,
	ErrCodeLigandParse: 65,

	ErrCodeMatchTimeout: 75,
	ErrCodeMatchFailure: 70,

	ErrCodeRuleConfigInvalid: 78,
	ErrCodeMatrixIncomplete:  70,

	ErrCodeNetworkConnectivity: 70,
	ErrCodeOverrideInvalid:     65,
	ErrCodeNetworkConfig:       78,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:        "internal error",
	ErrCodeBadRequest:      "bad request",
	ErrCodeNotFound:        "resource not found",
	ErrCodeTimeout:         "operation timed out",
	ErrCodeValidation:      "validation failed",
	ErrCodeSerialization:   "serialization failed",
	ErrCodeCacheError:      "cache error",
	ErrCodeExternalService: "external service error",
	ErrCodeNotImplemented:  "not implemented",

	ErrCodeLigandInput: "invalid ligand input",
	ErrCodeLigandIndex: "ligand index out of range",
	ErrCodeLigandType:  "value is not a ligand",
	ErrCodeLigandIO:    "no loadable molecule files",
	ErrCodeLigandParse: "failed to parse molecule file",

	ErrCodeMatchTimeout: "structure match timed out",
	ErrCodeMatchFailure: "structure match failed",

	ErrCodeRuleConfigInvalid: "invalid scoring rule configuration",
	ErrCodeMatrixIncomplete:  "score matrix is incomplete",

	ErrCodeNetworkConnectivity: "network is not connected",
	ErrCodeOverrideInvalid:     "invalid link override",
	ErrCodeNetworkConfig:       "invalid network configuration",
}

// ExitStatusForCode returns the process exit status for an ErrorCode.
func ExitStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeExitStatus[code]; ok {
		return status
	}
	return 1
}

// ExitCodeFor returns the process exit status for any error, 0 for nil.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return ExitStatusForCode(GetCode(err))
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
