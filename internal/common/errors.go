/**
 * Copyright 2021 The IcecaneDB Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"fmt"
)

// NotFoundError is returned when the required value is not found.
type NotFoundError struct {
	Message string
}

func (nf NotFoundError) Error() string {
	return fmt.Sprintf("%s", nf.Message)
}

// NewNotFoundError creates a new instance of NotFoundError with the given message.
func NewNotFoundError(message string) NotFoundError {
	return NotFoundError{
		Message: message,
	}
}

// AllocationError is returned when the allocator refuses a request.
// The failed operation is abandoned but the transaction stays usable.
type AllocationError struct {
	Message string
	Size    int
}

func (ae AllocationError) Error() string {
	return fmt.Sprintf("%s (requested %d bytes)", ae.Message, ae.Size)
}

// NewAllocationError creates a new instance of AllocationError with the given message.
func NewAllocationError(message string, size int) AllocationError {
	return AllocationError{
		Message: message,
		Size:    size,
	}
}

// IsAllocationError reports whether err is an AllocationError.
func IsAllocationError(err error) bool {
	_, ok := err.(AllocationError)
	return ok
}

// InvalidTransactionStateError is returned when an operation is called on a txn
// that is no longer in a state that accepts it, e.g. a write after commit.
type InvalidTransactionStateError struct {
	Message string
}

func (ite InvalidTransactionStateError) Error() string {
	return fmt.Sprintf("%s", ite.Message)
}

// NewInvalidTransactionStateError creates a new instance of InvalidTransactionStateError with the given message.
func NewInvalidTransactionStateError(message string) InvalidTransactionStateError {
	return InvalidTransactionStateError{
		Message: message,
	}
}

// ClosedError is returned when the engine has already been closed.
type ClosedError struct {
	Message string
}

func (ce ClosedError) Error() string {
	return fmt.Sprintf("%s", ce.Message)
}

// NewClosedError creates a new instance of ClosedError with the given message.
func NewClosedError(message string) ClosedError {
	return ClosedError{
		Message: message,
	}
}
