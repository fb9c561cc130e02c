package apperr

import (
	"errors"
	"fmt"
)

// Kind 业务错误类别
// 对外暴露稳定的错误码，具体文案放在 Message 里。
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientFunds
	KindStateConflict
	KindDuplicateIdentity
	KindGatewayUnavailable
	KindConfigurationMissing
	KindNotFound
)

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 提取错误类别；非业务错误返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is 判断错误是否属于指定类别
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
