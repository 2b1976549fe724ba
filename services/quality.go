package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"kpitracker/utils"
)

var qualitySynonyms = map[string]int{
	"good":     1,
	"pos":      1,
	"positive": 1,
	"plus":     1,
	"+1":       1,
	"+":        1,
	"bad":      -1,
	"neg":      -1,
	"negative": -1,
	"minus":    -1,
	"-":        -1,
}

// ParseQualityPoint coerces a loosely typed quality rating to -1 or 1.
func ParseQualityPoint(raw interface{}) (int, error) {
	invalid := utils.NewValidationError("qualityPoint", "qualityPoint must be -1 or 1")

	var value int
	switch v := raw.(type) {
	case nil:
		return 0, utils.NewValidationError("qualityPoint", "qualityPoint is required")
	case int:
		value = v
	case int32:
		value = int(v)
	case int64:
		value = int(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid
		}
		value = int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, invalid
		}
		value = int(n)
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if n, ok := qualitySynonyms[s]; ok {
			return n, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, invalid
		}
		value = n
	default:
		return 0, invalid
	}

	if value != 1 && value != -1 {
		return 0, invalid
	}
	return value, nil
}
