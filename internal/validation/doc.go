// Resonance - Social Media Engagement Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Package validation provides struct validation using go-playground/validator v10.
//
// A thread-safe singleton validator is shared by the normalizer (snapshot
// invariants) and the ops API (request parameters). Field names in errors
// use the json tag so messages match the wire format.
//
// Validation never stops at the first failure: RequestValidationError lists
// every violated rule, and callers may append cross-field rules with Add.
// The error is classified as VALIDATION_ERROR in the pipeline taxonomy.
//
//	if verr := validation.ValidateStruct(&snapshot); verr != nil {
//	    for _, v := range verr.Errors() {
//	        logging.Warn().Str("field", v.Field()).Str("rule", v.Tag()).Msg(v.Error())
//	    }
//	}
package validation
