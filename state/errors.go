package state

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindProtocol
	KindCrypto
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var (
	ErrNoRoute        = errors.New("no route to destination")
	ErrMisrouted      = errors.New("forbidden: message is not addressed to this hop")
	ErrPathExhausted  = errors.New("path exhausted before reaching a destination")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size")
	ErrMissingKey     = errors.New("message carries no wrapped key")
	ErrDecrypt        = errors.New("decryption failed")
	ErrInvalidWeight  = errors.New("edge weight must be a positive integer")
	ErrSelfLoop       = errors.New("edge endpoints must differ")
)

// Error tags a failure with the category callers react to
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

func Protocol(op string, err error) error {
	return &Error{Kind: KindProtocol, Op: op, Err: err}
}

func Crypto(op string, err error) error {
	return &Error{Kind: KindCrypto, Op: op, Err: err}
}

func kindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func IsTransient(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindTransient
}

func IsProtocol(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindProtocol
}

func IsCrypto(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCrypto
}
