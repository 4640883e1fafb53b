// Package errors is a fork of `github.com/go-errors/errors` that adds status
// codes, public messages and HTTP status mapping on top of stack-traces.
//
// Codes reuse the gRPC vocabulary (`codes.Code`) so that every failure in the
// client, whether it came from the token codec, the device store or the REST
// backend, can be classified the same way.
//
// For example:
//
//	var ErrMalformed = errors.NewC("token: malformed", codes.InvalidArgument)
//
//	func Decode(raw string) (Identity, error) {
//	    ...
//	    return Identity{}, errors.Mark(ErrMalformed, 0).Append(err.Error())
//	}
//
// Callers can then test for the sentinel:
//
//	if errors.Is(err, token.ErrMalformed) {
//	    fmt.Println(err.(*errors.Error).ErrorStack())
//	}
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"

	goerrors "github.com/go-errors/errors"
	"google.golang.org/grpc/codes"
)

// MaxStackDepth caps the frames recorded per error.
var MaxStackDepth = 50

// StackFrame is one resolved frame.
type StackFrame = goerrors.StackFrame

// Error carries a stack, a code, an optional HTTP status and an optional
// public message alongside the wrapped error.
type Error struct {
	Err    error
	stack  []uintptr
	frames []StackFrame
	prefix string

	code           codes.Code
	httpStatusCode int
	publicMessage  string
}

// New returns an Error with code Unknown whose stack starts at the caller.
// Non-error values are formatted with %v.
func New(e interface{}) *Error {
	return newError(e, codes.Unknown, 1)
}

// NewC is New with an explicit code. Package level sentinels use it.
func NewC(e interface{}, code codes.Code) *Error {
	return newError(e, code, 1)
}

func newError(e interface{}, code codes.Code, skip int) *Error {
	var err error

	switch e := e.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	return &Error{
		Err:   err,
		stack: callers(skip + 1),
		code:  code,
	}
}

// Wrap turns e into an *Error, returning it unchanged if it already is one.
// skip counts frames above the caller to leave out of the stack.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}

	var err error

	switch e := e.(type) {
	case *Error:
		return e
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	return &Error{
		Err:   err,
		stack: callers(skip + 1),
		code:  codes.Unknown,
	}
}

// MaybeWrap is Wrap for the final return of a function: nil stays an untyped
// nil.
func MaybeWrap(e error, skip int) error {
	if e == nil {
		return nil
	}
	return Wrap(e, 1+skip)
}

// WrapPrefix wraps e and prepends prefix to its message. Prefixes nest, outer
// first. Code, HTTP status and public message carry over.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}

	err := Wrap(e, 1+skip)

	if err.prefix != "" {
		prefix = fmt.Sprintf("%s: %s", prefix, err.prefix)
	}

	return &Error{
		Err:            err.Err,
		stack:          err.stack,
		code:           err.code,
		httpStatusCode: err.httpStatusCode,
		publicMessage:  err.publicMessage,
		prefix:         prefix,
	}
}

// Mark copies a sentinel with a fresh stack taken at the caller. The copy
// still matches the sentinel under Is, and the sentinel itself is never
// mutated.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		return &Error{
			Err:            err.Err,
			stack:          callers(skip + 1),
			code:           err.code,
			httpStatusCode: err.httpStatusCode,
			publicMessage:  err.publicMessage,
			prefix:         err.prefix,
		}
	}
	return Wrap(e, 1+skip)
}

// WithPublicMessage wraps err and attaches a message that is safe to show to
// the user.
func WithPublicMessage(err error, publicMessage string) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithPublicMessage(publicMessage)
}

// WithCode wraps err and classifies it with code.
func WithCode(err error, code codes.Code) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithCode(code)
}

// Codef formats a message into a new error classified as code.
func Codef(code codes.Code, format string, a ...interface{}) *Error {
	return Wrap(fmt.Errorf(format, a...), 1).WithCode(code)
}

// Error returns the message with any prefix.
func (err *Error) Error() string {
	msg := err.Err.Error()
	if err.prefix != "" {
		msg = fmt.Sprintf("%s: %s", err.prefix, msg)
	}
	return msg
}

// Append adds detail to the end of the error message, without changing the
// identity of the error for the purpose of Is.
func (err *Error) Append(detail string) *Error {
	if detail == "" {
		return err
	}
	err.Err = &appended{cause: err.Err, detail: detail}
	return err
}

type appended struct {
	cause  error
	detail string
}

func (a *appended) Error() string { return a.cause.Error() + ": " + a.detail }
func (a *appended) Unwrap() error { return a.cause }

// Is reports whether target is the same logical error. Two *Error values match
// when their underlying errors match, which is what allows Mark'd copies of a
// sentinel to satisfy the standard library's errors.Is.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return stderrors.Is(err.Err, t.Err)
}

// Stack renders the frames like runtime/debug.Stack.
func (err *Error) Stack() []byte {
	buf := bytes.Buffer{}
	for _, frame := range err.StackFrames() {
		buf.WriteString(frame.String())
	}
	return buf.Bytes()
}

// MinimalStack renders at most size frames, starting at skip, on one line
// for log fields.
func (err *Error) MinimalStack(skip, size int) string {
	frames := err.StackFrames()
	if skip >= len(frames) {
		return ""
	}
	frames = frames[skip:]
	if size > 0 && size < len(frames) {
		frames = frames[:size]
	}
	parts := make([]string, 0, len(frames))
	for _, f := range frames {
		parts = append(parts, fmt.Sprintf("%s:%d", f.Name, f.LineNumber))
	}
	return strings.Join(parts, " < ")
}

// ErrorStack is the type, message and full stack, for debugging.
func (err *Error) ErrorStack() string {
	return err.TypeName() + " " + err.Error() + "\n" + string(err.Stack())
}

// StackFrames resolves the recorded program counters lazily. Inlined calls
// get a frame of their own.
func (err *Error) StackFrames() []StackFrame {
	if err.frames == nil {
		err.frames = make([]StackFrame, 0, len(err.stack))
		frames := runtime.CallersFrames(err.stack)
		for {
			f, more := frames.Next()
			if f.Function != "" {
				pkg, name := splitFunction(f.Function)
				err.frames = append(err.frames, StackFrame{
					File:           f.File,
					LineNumber:     f.Line,
					Name:           name,
					Package:        pkg,
					ProgramCounter: f.PC,
				})
			}
			if !more {
				break
			}
		}
	}
	return err.frames
}

// splitFunction turns "github.com/a/b.(*T).M" into "github.com/a/b" and
// "(*T).M".
func splitFunction(fn string) (pkg, name string) {
	slash := strings.LastIndex(fn, "/")
	dot := strings.Index(fn[slash+1:], ".")
	if dot < 0 {
		return "", fn
	}
	return fn[:slash+1+dot], fn[slash+2+dot:]
}

// TypeName is the dynamic type of the wrapped error.
func (err *Error) TypeName() string {
	return reflect.TypeOf(err.Err).String()
}

// Unwrap exposes the wrapped error to errors.As.
func (err *Error) Unwrap() error {
	return err.Err
}

// Code is the error's classification.
func (err *Error) Code() codes.Code {
	return err.code
}

// WithCode reclassifies the error in place.
func (err *Error) WithCode(code codes.Code) *Error {
	err.code = code
	return err
}

// HTTPStatusCode is the status the backend answered with, when the error came
// from a response, or else the status conventionally paired with Code.
func (err *Error) HTTPStatusCode() int {
	if err.httpStatusCode != 0 {
		return err.httpStatusCode
	}
	switch err.code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Canceled, codes.Unknown, codes.Aborted, codes.Internal, codes.DataLoss:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// WithHTTPStatusCode records the response status that produced the error.
func (err *Error) WithHTTPStatusCode(code int) *Error {
	err.httpStatusCode = code
	return err
}

// PublicMessage is the user facing message, or Error() if none was set.
func (err *Error) PublicMessage() string {
	if err.publicMessage != "" {
		return err.publicMessage
	}
	return err.Error()
}

// WithPublicMessage sets the user facing message in place.
func (err *Error) WithPublicMessage(publicMessage string) *Error {
	err.publicMessage = publicMessage
	return err
}

// Code classifies any error: OK for nil, the first Code() found in the chain,
// and Unknown otherwise.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var ce codedError
	if stderrors.As(err, &ce) {
		return ce.Code()
	}
	return codes.Unknown
}

// HTTPStatusCode is 200 for nil, the first HTTPStatusCode() in the chain, and
// 500 otherwise.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var he httpError
	if stderrors.As(err, &he) {
		return he.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the user presentable message for an error, falling
// back to fallback for errors that don't carry one.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if stderrors.As(err, &e) && e.publicMessage != "" {
		return e.publicMessage
	}
	return fallback
}

// CodeFromHTTPStatus maps an HTTP response status to a status code. It is the
// inverse of (*Error).HTTPStatusCode for the statuses a REST backend returns.
func CodeFromHTTPStatus(status int) codes.Code {
	switch {
	case status >= 200 && status < 300:
		return codes.OK
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case status == http.StatusUnauthorized:
		return codes.Unauthenticated
	case status == http.StatusForbidden:
		return codes.PermissionDenied
	case status == http.StatusNotFound:
		return codes.NotFound
	case status == http.StatusConflict:
		return codes.AlreadyExists
	case status == http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case status == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case status == http.StatusNotImplemented:
		return codes.Unimplemented
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway:
		return codes.Unavailable
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return codes.DeadlineExceeded
	case status >= 500:
		return codes.Internal
	}
	return codes.Unknown
}

// Is reports whether e matches original, looking through *Error wrappers on
// either side.
func Is(e error, original error) bool {
	if stderrors.Is(e, original) {
		return true
	}
	if e, ok := e.(*Error); ok {
		return Is(e.Err, original)
	}
	if original, ok := original.(*Error); ok {
		return Is(e, original.Err)
	}
	return false
}

// As is a passthrough to the standard library's errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func callers(skip int) []uintptr {
	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return stack[:length]
}

type codedError interface {
	Code() codes.Code
}

type httpError interface {
	HTTPStatusCode() int
}
