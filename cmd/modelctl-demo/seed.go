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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// Seed lists the rows inserted on startup. Animals carry their kind.
type Seed struct {
	Heroes  []map[string]any `yaml:"heroes"`
	Animals []map[string]any `yaml:"animals"`
}

func loadSeed(path string) (*Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := &Seed{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return s, nil
}

// seed inserts s through the controllers in one transaction and returns the
// number of rows created.
func (a *app) seed(ctx context.Context, s *Seed) (int, error) {
	n := 0
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, h := range s.Heroes {
			if _, err := a.heroes.Create(ctx, tx, h); err != nil {
				return fmt.Errorf("hero %d: %w", i, err)
			}
			n++
		}
		for i, an := range s.Animals {
			if _, err := a.animals.Create(ctx, tx, an); err != nil {
				return fmt.Errorf("animal %d: %w", i, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
