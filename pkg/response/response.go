package response

import (
	"errors"

	"github.com/fatflowers/tenantmaster/pkg/apperr"
)

// New generic response spec
type APIResponseCode int

const (
	APIResponseCodeOK              APIResponseCode = 0
	APIResponseCodeBadRequest      APIResponseCode = 40000
	APIResponseCodeNotFound        APIResponseCode = 40400
	APIResponseCodePortExhaustion  APIResponseCode = 40900
	APIResponseCodeBusy            APIResponseCode = 42900
	APIResponseCodeError           APIResponseCode = 50000
	APIResponseCodeProvisioning    APIResponseCode = 50001
	APIResponseCodeMaterialization APIResponseCode = 50002
	APIResponseCodeRepository      APIResponseCode = 50003
	APIResponseCodeTimeout         APIResponseCode = 50400
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:              "ok",
	APIResponseCodeBadRequest:      "invalid request",
	APIResponseCodeNotFound:        "not found",
	APIResponseCodePortExhaustion:  "no free port",
	APIResponseCodeBusy:            "too many pending operations",
	APIResponseCodeError:           "unexpected error",
	APIResponseCodeProvisioning:    "database provisioning failed",
	APIResponseCodeMaterialization: "code materialization failed",
	APIResponseCodeRepository:      "repository publishing failed",
	APIResponseCodeTimeout:         "operation timed out",
}

var kindToCode = map[apperr.Kind]APIResponseCode{
	apperr.KindValidation:      APIResponseCodeBadRequest,
	apperr.KindPortExhaustion:  APIResponseCodePortExhaustion,
	apperr.KindProvisioning:    APIResponseCodeProvisioning,
	apperr.KindMaterialization: APIResponseCodeMaterialization,
	apperr.KindRepository:      APIResponseCodeRepository,
	apperr.KindTimeout:         APIResponseCodeTimeout,
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// CodeOf maps an error to its response code by apperr kind. Errors without
// a kind are APIResponseCodeError.
func CodeOf(err error) APIResponseCode {
	if err == nil {
		return APIResponseCodeOK
	}
	if code, ok := kindToCode[apperr.KindOf(err)]; ok {
		return code
	}
	return APIResponseCodeError
}

// Err builds an error response carrying err's message. Mapped codes for
// errors outside apperr can be passed in known.
func Err(err error, known map[error]APIResponseCode) *APIResponse[any] {
	for target, code := range known {
		if errors.Is(err, target) {
			return ErrorT[any](code, err.Error())
		}
	}
	return ErrorT[any](CodeOf(err), err.Error())
}
