package aws

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// Class is the retry classification of a cloud API error.
type Class int

const (
	// ClassRetryable errors are retried with backoff.
	ClassRetryable Class = iota
	// ClassAlreadyExists errors mean the resource is already there; callers treat them as success.
	ClassAlreadyExists
	// ClassPermission errors need operator action and are never retried.
	ClassPermission
	// ClassFatal errors are returned immediately.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassRetryable:
		return "retryable"
	case ClassAlreadyExists:
		return "already_exists"
	case ClassPermission:
		return "permission"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ErrAlreadyExists wraps provider errors reporting that a resource, rule or
// association already exists.
var ErrAlreadyExists = errors.New("resource already exists")

// codeConnectionReset is the synthetic code assigned to transport failures.
const codeConnectionReset = "ConnectionReset"

// ErrorDescriptor is the normalized form of an error used for classification.
type ErrorDescriptor struct {
	StatusCode int
	Code       string
	Message    string
	// Provider is true when the error came from the AWS API or its transport.
	Provider bool
}

// Describe extracts an ErrorDescriptor from err.
func Describe(err error) ErrorDescriptor {
	var d ErrorDescriptor
	if err == nil {
		return d
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		d.Provider = true
		d.Code = apiErr.ErrorCode()
		d.Message = apiErr.ErrorMessage()
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		d.Provider = true
		d.StatusCode = respErr.HTTPStatusCode()
	}

	if d.Code == "" && isConnectionReset(err) {
		d.Provider = true
		d.Code = codeConnectionReset
	}

	return d
}

func isConnectionReset(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection reset")
}

var alreadyExistsCodes = map[string]bool{
	"AlreadyExists":                  true,
	"EntityAlreadyExists":            true,
	"BucketAlreadyOwnedByYou":        true,
	"RouteAlreadyExists":             true,
	"Resource.AlreadyAssociated":     true,
	"ResourceAlreadyExistsException": true,
}

var permissionCodes = map[string]bool{
	"UnauthorizedOperation":       true,
	"AuthFailure":                 true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
	"OptInRequired":               true,
	"UnrecognizedClientException": true,
}

var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestLimitExceeded":                   true,
	"RequestThrottled":                       true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"SlowDown":                               true,
	"ProvisionedThroughputExceededException": true,
	"PriorRequestNotComplete":                true,
	"RequestTimeout":                         true,
	"RequestTimeoutException":                true,
	"InternalError":                          true,
	"InternalFailure":                        true,
	"ServiceUnavailable":                     true,
	"Unavailable":                            true,
	"InsufficientInstanceCapacity":           true,
	codeConnectionReset:                      true,
}

var notFoundCodes = map[string]bool{
	"NotFound":                  true,
	"NoSuchEntity":              true,
	"NoSuchBucket":              true,
	"NoSuchKey":                 true,
	"ResourceNotFoundException": true,
}

var validationCodes = map[string]bool{
	"InvalidParameterValue":       true,
	"InvalidParameterCombination": true,
	"InvalidParameter":            true,
	"InvalidInput":                true,
	"MissingParameter":            true,
	"ValidationError":             true,
	"ValidationException":         true,
	"InvalidRequestException":     true,
	"InvalidRequest":              true,
	"MalformedPolicyDocument":     true,
	"InvalidSubnet.Conflict":      true,
	"InvalidSubnet.Range":         true,
	"InvalidVpc.Range":            true,
	"BucketAlreadyExists":         true,
	"InvalidBucketName":           true,
	"IdempotentParameterMismatch": true,
	"Unsupported":                 true,
}

// Classify maps a descriptor to a retry class. Rules apply in priority order:
// already-exists, permission, server/throttling/transport, not-found,
// validation, then any other provider error is retried and anything outside
// the provider family is fatal.
func Classify(d ErrorDescriptor) Class {
	if !d.Provider {
		return ClassFatal
	}
	code := d.Code

	switch {
	case isAlreadyExistsCode(code):
		return ClassAlreadyExists
	case d.StatusCode == http.StatusForbidden || isPermissionCode(code):
		return ClassPermission
	case d.StatusCode >= http.StatusInternalServerError || throttlingCodes[code]:
		return ClassRetryable
	case d.StatusCode == http.StatusNotFound || isNotFoundCode(code):
		return ClassRetryable
	case isInstanceProfilePropagation(d):
		// IAM changes take a few seconds to reach EC2.
		return ClassRetryable
	case isValidationCode(code):
		return ClassFatal
	default:
		return ClassRetryable
	}
}

// ClassifyError is Classify(Describe(err)).
func ClassifyError(err error) Class {
	return Classify(Describe(err))
}

func isAlreadyExistsCode(code string) bool {
	if alreadyExistsCodes[code] {
		return true
	}
	// The bucket name is taken by another account.
	if code == "BucketAlreadyExists" {
		return false
	}
	return strings.HasSuffix(code, ".Duplicate") ||
		strings.HasSuffix(code, "AlreadyExists") ||
		strings.HasSuffix(code, "AlreadyExistsException")
}

func isPermissionCode(code string) bool {
	return permissionCodes[code] || strings.HasPrefix(code, "AccessDenied")
}

func isNotFoundCode(code string) bool {
	return notFoundCodes[code] || strings.HasSuffix(code, ".NotFound") || strings.HasSuffix(code, "NotFoundException")
}

func isValidationCode(code string) bool {
	if validationCodes[code] || strings.HasSuffix(code, ".Malformed") {
		return true
	}
	return strings.HasSuffix(code, "LimitExceeded") || strings.HasSuffix(code, "LimitExceededException")
}

func isInstanceProfilePropagation(d ErrorDescriptor) bool {
	return d.Code == "InvalidParameterValue" &&
		strings.Contains(strings.ToLower(d.Message), "iam instance profile")
}

// IsNotFound reports whether err is a provider not-found error.
func IsNotFound(err error) bool {
	d := Describe(err)
	return d.Provider && (d.StatusCode == http.StatusNotFound || isNotFoundCode(d.Code))
}

// IsAlreadyExists reports whether err signals an existing resource.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || ClassifyError(err) == ClassAlreadyExists
}

// PermissionError is returned when the caller lacks rights for an operation.
type PermissionError struct {
	Operation string
	Code      string
	Err       error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for %s (%s): %v; grant %s to the credentials in use and re-run",
		e.Operation, e.Code, e.Err, e.Operation)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

// IsPermission reports whether err is a *PermissionError.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}
