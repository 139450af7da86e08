package domain

import (
	"errors"
	"fmt"
)

// ErrorKind класс ошибки конвейера заказа
type ErrorKind string

const (
	KindRejectedInput           ErrorKind = "RejectedInput"
	KindStorageError            ErrorKind = "StorageError"
	KindConfigurationMissing    ErrorKind = "ConfigurationMissing"
	KindInvoiceGenerationFailed ErrorKind = "InvoiceGenerationFailed"
	KindDeliveryFailed          ErrorKind = "DeliveryFailed"
)

// Error ошибка с классом из таксономии. Field заполняется для ошибок валидации.
type Error struct {
	Kind   ErrorKind
	Field  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += " [" + e.Field + "]"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil && e.Err.Error() != e.Detail {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &Error{Kind: k}) to match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Field == "" && t.Detail == "" && t.Err == nil
}

// Invalid ошибка валидации поля
func Invalid(field, format string, args ...any) *Error {
	return &Error{Kind: KindRejectedInput, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// Wrap оборачивает err в ошибку заданного класса, сохраняя текст транспорта в Detail
func Wrap(kind ErrorKind, err error) *Error {
	e := &Error{Kind: kind, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// KindOf returns the taxonomy kind carried by err, or "" if it has none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
