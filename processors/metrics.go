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
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomoncle/modelctl"
)

// MetricsProcessor counts controller events by model and operation.
type MetricsProcessor struct {
	operations *prometheus.CounterVec
}

// NewMetricsProcessor registers the operation counter on reg, or on the
// default registerer when reg is nil. namespace prefixes the metric name.
func NewMetricsProcessor(reg prometheus.Registerer, namespace string) (*MetricsProcessor, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Successful controller operations by model and operation.",
	}, []string{"model", "operation"})
	if err := reg.Register(cv); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		cv = existing
	}
	return &MetricsProcessor{operations: cv}, nil
}

// Operations exposes the counter, mainly for tests.
func (p *MetricsProcessor) Operations() *prometheus.CounterVec {
	return p.operations
}

func (p *MetricsProcessor) Process(_ context.Context, e modelctl.Event) {
	p.operations.WithLabelValues(e.Model, e.Operation.Name()).Inc()
}
