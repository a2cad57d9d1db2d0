// Package apperror carries stable, caller-facing error codes together with
// the HTTP status they map to.
package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// Error codes returned to API callers.
const (
	CodeNoUser               = "NO_USER"
	CodeNoSubscription       = "NO_SUBSCRIPTION"
	CodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	CodeFeatureNotAvailable  = "FEATURE_NOT_AVAILABLE"
	CodeUsageLimitReached    = "USAGE_LIMIT_REACHED"
	CodePlanNotFound         = "PLAN_NOT_FOUND"
	CodeFreePlan             = "FREE_PLAN"
	CodeMissingPaymentInfo   = "MISSING_PAYMENT_DETAILS"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeInvalidPromo         = "INVALID_PROMO"
	CodeCannotCancelFree     = "CANNOT_CANCEL_FREE"
	CodeMissingInput         = "MISSING_INPUT"
	CodeNotFound             = "NOT_FOUND"
	CodeConflict             = "CONFLICT"
	CodeForbidden            = "FORBIDDEN"
	CodeGatewayError         = "GATEWAY_ERROR"
	CodeVendorUnavailable    = "VENDOR_UNAVAILABLE"
	CodeInternal             = "INTERNAL"
)

// Error is a policy rejection or integrity failure with a stable code.
type Error struct {
	Code    string
	Status  int
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With returns a copy of e carrying an extra detail field.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// New builds an Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds an Error that keeps cause in its chain.
func Wrap(code string, status int, message string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: cause}
}

func NoUser() *Error {
	return New(CodeNoUser, fiber.StatusUnauthorized, "Authentication required")
}

func NoSubscription() *Error {
	return New(CodeNoSubscription, fiber.StatusForbidden, "No active subscription found")
}

func SubscriptionInactive(status string) *Error {
	return New(CodeSubscriptionInactive, fiber.StatusForbidden, "Subscription is not active").With("status", status)
}

func FeatureNotAvailable(feature string) *Error {
	return New(CodeFeatureNotAvailable, fiber.StatusForbidden, "Feature is not available on your plan").With("feature", feature)
}

func UsageLimitReached(feature string) *Error {
	return New(CodeUsageLimitReached, fiber.StatusTooManyRequests, "Monthly usage limit reached").With("feature", feature)
}

func PlanNotFound() *Error {
	return New(CodePlanNotFound, fiber.StatusNotFound, "Plan not found or inactive")
}

func FreePlan() *Error {
	return New(CodeFreePlan, fiber.StatusBadRequest, "Free plan does not require payment")
}

func MissingPaymentDetails() *Error {
	return New(CodeMissingPaymentInfo, fiber.StatusBadRequest, "Order id, payment id and signature are required")
}

func InvalidSignature() *Error {
	return New(CodeInvalidSignature, fiber.StatusBadRequest, "Signature verification failed")
}

func InvalidPromo() *Error {
	return New(CodeInvalidPromo, fiber.StatusBadRequest, "Promo code is invalid, expired or exhausted")
}

func CannotCancelFree() *Error {
	return New(CodeCannotCancelFree, fiber.StatusBadRequest, "Free plan cannot be cancelled")
}

func MissingInput(message string) *Error {
	return New(CodeMissingInput, fiber.StatusBadRequest, message)
}

func NotFound(what string) *Error {
	return New(CodeNotFound, fiber.StatusNotFound, what+" not found")
}

func Conflict(message string) *Error {
	return New(CodeConflict, fiber.StatusConflict, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, fiber.StatusForbidden, message)
}

func Gateway(cause error) *Error {
	return Wrap(CodeGatewayError, fiber.StatusBadGateway, "Payment gateway request failed", cause)
}

func VendorUnavailable(feature string, cause error) *Error {
	return Wrap(CodeVendorUnavailable, fiber.StatusServiceUnavailable, "Generation vendor for "+feature+" is unavailable", cause).
		With("feature", feature)
}

func Internal(cause error) *Error {
	return Wrap(CodeInternal, fiber.StatusInternalServerError, "Internal server error", cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}

// Body renders the JSON body of an error response.
func (e *Error) Body() fiber.Map {
	body := fiber.Map{
		"success": false,
		"error":   e.Code,
		"message": e.Message,
	}
	for k, v := range e.Details {
		if _, reserved := body[k]; !reserved {
			body[k] = v
		}
	}
	return body
}

// Respond writes err as a JSON error response. Errors without a code become 500 INTERNAL.
func Respond(c *fiber.Ctx, err error) error {
	ae, ok := As(err)
	if !ok {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), err)
		ae = Internal(err)
	} else if ae.Status >= fiber.StatusInternalServerError {
		log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), ae)
	}
	return c.Status(ae.Status).JSON(ae.Body())
}
