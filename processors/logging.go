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

	"github.com/sirupsen/logrus"

	"github.com/tomoncle/modelctl"
	"github.com/tomoncle/modelctl/utils"
)

// LoggingProcessor writes one log entry per controller event.
type LoggingProcessor struct {
	logger logrus.FieldLogger
	level  logrus.Level
}

// NewLoggingProcessor logs events to logger at info level. A nil logger uses
// the "PROCESSOR" logger of the utils registry.
func NewLoggingProcessor(logger logrus.FieldLogger) *LoggingProcessor {
	if logger == nil {
		logger = utils.NewLogger("PROCESSOR")
	}
	return &LoggingProcessor{logger: logger, level: logrus.InfoLevel}
}

// WithLevel changes the level events are logged at.
func (p *LoggingProcessor) WithLevel(level logrus.Level) *LoggingProcessor {
	p.level = level
	return p
}

func (p *LoggingProcessor) Process(_ context.Context, e modelctl.Event) {
	fields := logrus.Fields{
		"operation": e.Operation.Name(),
		"model":     e.Model,
	}
	for k, v := range e.Context {
		fields["ctx."+k] = v
	}
	p.logger.WithFields(fields).Log(p.level, e.Operation.Desc())
}
