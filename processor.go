/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package modelctl

import (
	"context"

	"github.com/tomoncle/modelctl/types"
)

// OperationType names the controller operation a processor is notified of.
type OperationType int

const (
	OperationCreate OperationType = iota + 1
	OperationRead
	OperationUpdate
	OperationDelete
)

var _ types.BaseEnum = OperationCreate

var operationNames = map[OperationType][2]string{
	OperationCreate: {"CREATE", "row created"},
	OperationRead:   {"READ", "rows read"},
	OperationUpdate: {"UPDATE", "row updated"},
	OperationDelete: {"DELETE", "row deleted"},
}

func (o OperationType) IsValid() bool {
	_, ok := operationNames[o]
	return ok
}

func (o OperationType) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o OperationType) String() string { return o.Name() }

func (o OperationType) Name() string {
	if n, ok := operationNames[o]; ok {
		return n[0]
	}
	return types.IllegalName
}

func (o OperationType) Desc() string {
	if n, ok := operationNames[o]; ok {
		return n[1]
	}
	return types.IllegalDesc
}

// Event is what a processor receives after a successful operation.
type Event struct {
	Operation OperationType
	// Model is the resolved model name; for polymorphic controllers it is
	// the name of the variant type the row was created or read as.
	Model string
	// Data is the operation input: the create or update payload, the filter
	// values or identifier of a read, or the deleted row.
	Data any
	// Context is the per-request dictionary attached with WithEventContext;
	// never nil.
	Context map[string]any
}

// Processor observes controller operations.
type Processor interface {
	Process(ctx context.Context, event Event)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, event Event)

func (f ProcessorFunc) Process(ctx context.Context, event Event) { f(ctx, event) }

type eventContextKey struct{}

// WithEventContext attaches a context dictionary that is handed to processors
// for every operation performed with the returned context.
func WithEventContext(ctx context.Context, values map[string]any) context.Context {
	return context.WithValue(ctx, eventContextKey{}, values)
}

// EventContext returns the dictionary attached to ctx, or an empty one.
func EventContext(ctx context.Context) map[string]any {
	if values, ok := ctx.Value(eventContextKey{}).(map[string]any); ok && values != nil {
		return values
	}
	return map[string]any{}
}
