// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package normalize

import (
	"fmt"
	"math"

	"github.com/tomtom215/resonance/internal/metrics"
	"github.com/tomtom215/resonance/internal/models"
	"github.com/tomtom215/resonance/internal/validation"
)

// engagementRateTolerance absorbs float rounding when rates are compared.
const engagementRateTolerance = 0.01

// Validate checks s against every snapshot rule and returns nil or a
// *validation.RequestValidationError listing each violation. The raw
// payload is never inspected.
func Validate(s *models.AnalyticsSnapshot) error {
	if s == nil {
		ve := &validation.RequestValidationError{}
		ve.Add("snapshot", "required", nil, "snapshot is required")
		return ve
	}

	ve := validation.ValidateStruct(s)
	if ve == nil {
		ve = &validation.RequestValidationError{}
	}

	if s.Impressions > 0 && s.Reach > s.Impressions {
		ve.Add("reach", "reach_lte_impressions", s.Reach,
			fmt.Sprintf("reach (%d) must not exceed impressions (%d)", s.Reach, s.Impressions))
	}
	if !s.RecordedAt.IsZero() && !s.RecordedAt.Equal(models.StartOfDay(s.RecordedAt)) {
		ve.Add("recorded_at", "start_of_day", s.RecordedAt,
			"recorded_at must be truncated to the start of the UTC day")
	}
	if want := models.EngagementRate(s.TotalEngagement(), s.Reach); !math.IsNaN(s.EngagementRate) &&
		math.Abs(s.EngagementRate-want) > engagementRateTolerance {
		ve.Add("engagement_rate", "engagement_rate_consistent", s.EngagementRate,
			fmt.Sprintf("engagement_rate %.2f does not match engagement/reach (%.2f)", s.EngagementRate, want))
	}
	if math.IsNaN(s.EngagementRate) {
		ve.Add("engagement_rate", "number", s.EngagementRate, "engagement_rate must be a number")
	}

	if ve.Len() == 0 {
		return nil
	}
	for _, e := range ve.Errors() {
		metrics.RecordValidationFailure(e.Tag())
	}
	return ve
}
