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

package processors

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/tomoncle/modelctl"
)

func TestLoggingProcessor(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewLoggingProcessor(logger)

	ctx := modelctl.WithEventContext(context.Background(), map[string]any{"user": "alice"})
	p.Process(ctx, modelctl.Event{
		Operation: modelctl.OperationCreate,
		Model:     "Hero",
		Context:   modelctl.EventContext(ctx),
	})

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Level != logrus.InfoLevel || entry.Message != "row created" {
		t.Errorf("unexpected entry %v %q", entry.Level, entry.Message)
	}
	if entry.Data["operation"] != "CREATE" || entry.Data["model"] != "Hero" || entry.Data["ctx.user"] != "alice" {
		t.Errorf("unexpected fields %v", entry.Data)
	}

	logger.SetLevel(logrus.InfoLevel)
	p.WithLevel(logrus.DebugLevel).Process(ctx, modelctl.Event{Operation: modelctl.OperationRead, Model: "Hero"})
	if len(hook.Entries) != 1 {
		t.Errorf("debug events must be filtered at info level, got %d entries", len(hook.Entries))
	}
}

func TestMetricsProcessor(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewMetricsProcessor(reg, "modelctl")
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	p.Process(ctx, modelctl.Event{Operation: modelctl.OperationCreate, Model: "Hero"})
	p.Process(ctx, modelctl.Event{Operation: modelctl.OperationCreate, Model: "Hero"})
	p.Process(ctx, modelctl.Event{Operation: modelctl.OperationDelete, Model: "SubModelB"})

	if got := testutil.ToFloat64(p.Operations().WithLabelValues("Hero", "CREATE")); got != 2 {
		t.Errorf("expected 2 creates, got %v", got)
	}
	if got := testutil.ToFloat64(p.Operations().WithLabelValues("SubModelB", "DELETE")); got != 1 {
		t.Errorf("expected 1 delete, got %v", got)
	}
	if n := testutil.CollectAndCount(p.Operations(), "modelctl_operations_total"); n != 2 {
		t.Errorf("expected 2 series, got %d", n)
	}

	again, err := NewMetricsProcessor(reg, "modelctl")
	if err != nil {
		t.Fatalf("registering twice must reuse the counter: %v", err)
	}
	if again.Operations() != p.Operations() {
		t.Error("expected the existing counter to be reused")
	}
}
