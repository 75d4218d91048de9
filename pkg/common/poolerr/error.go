// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package poolerr defines the error code space of the allocator.  Every
// error that crosses the package boundary is an *Error carrying one of
// the codes below, so callers can dispatch on the condition with
// IsPoolErrCode instead of matching message strings.
package poolerr

import (
	"fmt"
)

const (
	// 0 - 99 is OK.  They do not contain info and should not be
	// treated as failures.
	Ok    uint16 = 0
	OkMax uint16 = 99

	// Group 1: internal errors
	ErrStart    uint16 = 20100
	ErrInternal uint16 = 20101
	ErrOOM      uint16 = 20102

	// Group 2: invalid arguments and configuration
	ErrInvalidArg  uint16 = 20200
	ErrInvalidSize uint16 = 20201
	ErrBadConfig   uint16 = 20202

	// Group 3: pool state
	ErrInvalidFree uint16 = 20300
	ErrDoubleFree  uint16 = 20301

	// ErrEnd, the max value of the error code space
	ErrEnd uint16 = 65535
)

var errorMsgRefer = map[uint16]string{
	// OK codes are not in this table.  They carry no message.

	// Group 1: internal errors
	ErrStart:    "internal error: error code start",
	ErrInternal: "internal error: %s",
	ErrOOM:      "error: out of memory",

	// Group 2: invalid arguments and configuration
	ErrInvalidArg:  "invalid argument %s, bad value %s",
	ErrInvalidSize: "invalid size: %s",
	ErrBadConfig:   "invalid configuration: %s",

	// Group 3: pool state
	ErrInvalidFree: "invalid free: %s",
	ErrDoubleFree:  "double free: %s",

	// Group End: max value of the error code space
	ErrEnd: "internal error: end of error code",
}

func newError(code uint16, args ...any) *Error {
	format, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError("unknown pool error code: %d", code))
	}
	if len(args) == 0 {
		return &Error{code: code, message: format}
	}
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

type Error struct {
	code    uint16
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Succeeded() bool {
	return e.code <= OkMax
}

// IsPoolErrCode reports whether e carries the code rc.  A nil error
// matches Ok.
func IsPoolErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	pe, ok := e.(*Error)
	if !ok {
		return false
	}
	return pe.code == rc
}

// ConvertPanicError converts a recovered panic value to an internal
// error.  An *Error panics through unchanged.
func ConvertPanicError(v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ErrInternal, fmt.Sprintf("panic %v", v))
}

// ConvertGoError converts a go error into a pool error.  Note here we
// must return error, because nil error is not the same as nil *Error.
func ConvertGoError(err error) error {
	if err == nil {
		return err
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return NewInternalError("%v", err)
}

func NewInternalError(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInternal, xmsg)
}

func NewOOM() *Error {
	return newError(ErrOOM)
}

func NewInvalidArg(arg string, val any) *Error {
	return newError(ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewInvalidSize(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInvalidSize, xmsg)
}

func NewBadConfig(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrBadConfig, xmsg)
}

func NewInvalidFree(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrInvalidFree, xmsg)
}

func NewDoubleFree(msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ErrDoubleFree, xmsg)
}
