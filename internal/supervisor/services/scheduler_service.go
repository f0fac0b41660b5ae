// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package services

import (
	"context"
	"fmt"
)

// StartStopper is a component with a Start/Stop lifecycle, such as
// *sync.Scheduler.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts a Start/Stop component to suture. Start spawns
// the component's goroutines; Stop waits for them.
type SchedulerService struct {
	component StartStopper
	name      string
}

// NewSchedulerService creates the service.
func NewSchedulerService(component StartStopper) *SchedulerService {
	name := "sync-scheduler"
	if s, ok := component.(fmt.Stringer); ok {
		name = s.String()
	}
	return &SchedulerService{component: component, name: name}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *SchedulerService) String() string {
	return s.name
}
