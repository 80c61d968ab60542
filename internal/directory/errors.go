package directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// DirectoryError provides enhanced error information for directory operations.
type DirectoryError struct {
	Operation string        // The operation that failed
	Category  ErrorCategory // Error category
	Code      uint16        // LDAP result code, 0 when not applicable
	Message   string        // Human-readable message
	Ref       string        // Directory reference involved, if applicable
	Cause     error         // Underlying error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.Ref != "" {
		parts = append(parts, fmt.Sprintf("ref: %s", e.Ref))
	}

	return strings.Join(parts, " - ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// NewDirectoryError creates a new directory error from an underlying failure.
func NewDirectoryError(operation string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	dirErr := &DirectoryError{
		Operation: operation,
		Cause:     err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		dirErr.Code = ldapErr.ResultCode
		dirErr.Category = categorizeCode(ldapErr.ResultCode)
		dirErr.Message = ldap.LDAPResultCodeMap[ldapErr.ResultCode]
	} else {
		dirErr.Category = categorizeGenericError(err)
		dirErr.Message = err.Error()
	}

	return dirErr
}

// WrapError wraps an error with operation context.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		// Already wrapped, keep the innermost operation
		if dirErr.Operation == "" {
			dirErr.Operation = operation
		}
		return dirErr
	}

	return NewDirectoryError(operation, err)
}

// categorizeCode categorizes an error based on LDAP result code.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-LDAP errors.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "password") {
		return ErrorCategoryAuthentication
	}

	if strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access") ||
		strings.Contains(errStr, "denied") {
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// GetErrorCategory returns the category of an error.
func GetErrorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		return dirErr.Category
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return categorizeCode(ldapErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// IsNotFoundError checks if an error indicates a "not found" condition.
func IsNotFoundError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryNotFound
}

// IsAuthenticationError checks if an error indicates an authentication problem.
func IsAuthenticationError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryAuthentication
}

// IsPermissionError checks if an error indicates a permission problem.
func IsPermissionError(err error) bool {
	return GetErrorCategory(err) == ErrorCategoryPermission
}
