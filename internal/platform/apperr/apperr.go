package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeUnavailable    Code = "UNAVAILABLE"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeConflict       Code = "CONFLICT"
	CodeInternal       Code = "INTERNAL"
)

// Error は全ドメイン共通のエラーモデル。
// ハンドラ層で ToHTTPStatus により HTTP ステータスへ変換する。
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func NotFound(msg string) *Error       { return &Error{Code: CodeNotFound, Message: msg} }
func InvalidState(msg string) *Error   { return &Error{Code: CodeInvalidState, Message: msg} }
func Unavailable(msg string) *Error    { return &Error{Code: CodeUnavailable, Message: msg} }
func InvalidRequest(msg string) *Error { return &Error{Code: CodeInvalidRequest, Message: msg} }
func Conflict(msg string) *Error       { return &Error{Code: CodeConflict, Message: msg} }
func Internal(msg string) *Error       { return &Error{Code: CodeInternal, Message: msg} }

// CodeOf: apperr.Error でなければ INTERNAL 扱い
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool { return CodeOf(err) == code }

// ResponseBody はハンドラ共通のエラーレスポンス形式
type ResponseBody struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func Body(code Code, msg string) ResponseBody {
	var b ResponseBody
	b.Error.Code = code
	b.Error.Message = msg
	return b
}

func BodyFrom(err error) ResponseBody {
	var ae *Error
	if errors.As(err, &ae) {
		return Body(ae.Code, ae.Message)
	}
	return Body(CodeInternal, err.Error())
}

func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeUnavailable, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
