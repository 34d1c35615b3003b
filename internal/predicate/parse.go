// internal/predicate/parse.go
package predicate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "catalyst-alerts/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// queryParamsSchema is the structural contract for stored query_params JSON.
// additionalProperties is closed so a typo in a stored search surfaces as
// INVALID_PREDICATE instead of a silently ignored constraint.
var queryParamsSchema = map[string]interface{}{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]interface{}{
		"phase":                 map[string]interface{}{"type": "string"},
		"phases":                map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "minItems": 1},
		"min_market_cap":        map[string]interface{}{"type": "number", "minimum": 0},
		"max_market_cap":        map[string]interface{}{"type": "number", "minimum": 0},
		"min_enrollment":        map[string]interface{}{"type": "integer", "minimum": 1},
		"therapeutic_area":      map[string]interface{}{"type": "string", "minLength": 1},
		"completion_date_start": map[string]interface{}{"type": "string", "format": "date"},
		"completion_date_end":   map[string]interface{}{"type": "string", "format": "date"},
	},
}

type rawParams struct {
	Phase               string   `json:"phase"`
	Phases              []string `json:"phases"`
	MinMarketCap        *float64 `json:"min_market_cap"`
	MaxMarketCap        *float64 `json:"max_market_cap"`
	MinEnrollment       *int     `json:"min_enrollment"`
	TherapeuticArea     string   `json:"therapeutic_area"`
	CompletionDateStart string   `json:"completion_date_start"`
	CompletionDateEnd   string   `json:"completion_date_end"`
}

// Parse builds a Predicate from stored query_params JSON. Any structural or
// semantic violation returns an INVALID_PREDICATE error carrying the search id.
func Parse(searchID string, queryParams json.RawMessage) (*Predicate, error) {
	if len(queryParams) == 0 {
		return &Predicate{}, nil
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(queryParams, &doc); err != nil {
		return nil, apperrors.NewInvalidPredicateError(searchID, fmt.Sprintf("query_params is not a JSON object: %v", err))
	}

	schemaLoader := gojsonschema.NewGoLoader(queryParamsSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, apperrors.NewInvalidPredicateError(searchID, fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, apperrors.NewInvalidPredicateError(searchID, strings.Join(msgs, "; "))
	}

	var params rawParams
	if err := json.Unmarshal(queryParams, &params); err != nil {
		return nil, apperrors.NewInvalidPredicateError(searchID, err.Error())
	}

	return build(searchID, &params)
}

func build(searchID string, params *rawParams) (*Predicate, error) {
	pred := &Predicate{}

	if params.Phase != "" && len(params.Phases) > 0 {
		return nil, apperrors.NewInvalidPredicateError(searchID, "phase and phases are mutually exclusive")
	}
	if params.Phase != "" {
		pred.Conditions = append(pred.Conditions, PhaseEquals{Phase: params.Phase})
	}
	if len(params.Phases) > 0 {
		pred.Conditions = append(pred.Conditions, PhaseIn{Phases: params.Phases})
	}

	if params.MinMarketCap != nil || params.MaxMarketCap != nil {
		if params.MinMarketCap != nil && params.MaxMarketCap != nil && *params.MinMarketCap > *params.MaxMarketCap {
			return nil, apperrors.NewInvalidPredicateError(searchID, "min_market_cap exceeds max_market_cap")
		}
		pred.Conditions = append(pred.Conditions, MarketCapRange{Min: params.MinMarketCap, Max: params.MaxMarketCap})
	}

	if params.MinEnrollment != nil {
		pred.Conditions = append(pred.Conditions, MinEnrollment{Min: *params.MinEnrollment})
	}

	if params.TherapeuticArea != "" {
		pred.Conditions = append(pred.Conditions, IndicationContains{Substring: params.TherapeuticArea})
	}

	if params.CompletionDateStart != "" || params.CompletionDateEnd != "" {
		var start, end *time.Time
		if params.CompletionDateStart != "" {
			t, err := time.Parse("2006-01-02", params.CompletionDateStart)
			if err != nil {
				return nil, apperrors.NewInvalidPredicateError(searchID, fmt.Sprintf("completion_date_start: %v", err))
			}
			start = &t
		}
		if params.CompletionDateEnd != "" {
			t, err := time.Parse("2006-01-02", params.CompletionDateEnd)
			if err != nil {
				return nil, apperrors.NewInvalidPredicateError(searchID, fmt.Sprintf("completion_date_end: %v", err))
			}
			end = &t
		}
		if start != nil && end != nil && start.After(*end) {
			return nil, apperrors.NewInvalidPredicateError(searchID, "completion_date_start after completion_date_end")
		}
		pred.Conditions = append(pred.Conditions, CompletionDateRange{Start: start, End: end})
	}

	return pred, nil
}
