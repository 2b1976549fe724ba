package access

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"kpitracker/models"

	"github.com/golang-jwt/jwt/v5"
)

const WildcardZone = "*"

// Claims is the claim set the auth layer attaches to every request.
type Claims struct {
	Role        string          `json:"role"`
	ZoneIDs     ZoneIDs         `json:"zoneIds"`
	EmployeeID  models.StringID `json:"employeeId,omitempty"`
	Permissions PermissionFlags `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// ZoneIDs is the normalized zone claim. The wire form may be a list, the
// wildcard marker, a comma separated string or a JSON list serialized as a string.
type ZoneIDs struct {
	IDs      []string
	Wildcard bool
}

func NewZoneIDs(ids ...string) ZoneIDs {
	return normalizeZoneList(ids)
}

func (z ZoneIDs) MarshalJSON() ([]byte, error) {
	if z.Wildcard {
		return json.Marshal(append([]string{WildcardZone}, z.IDs...))
	}
	if z.IDs == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(z.IDs)
}

func (z *ZoneIDs) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseZoneIDs(raw)
	if err != nil {
		return err
	}
	*z = parsed
	return nil
}

func ParseZoneIDs(raw interface{}) (ZoneIDs, error) {
	switch v := raw.(type) {
	case nil:
		return ZoneIDs{}, nil
	case []string:
		return normalizeZoneList(v), nil
	case []interface{}:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return ZoneIDs{}, err
			}
			ids = append(ids, s)
		}
		return normalizeZoneList(ids), nil
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			var inner []interface{}
			if err := json.Unmarshal([]byte(s), &inner); err != nil {
				return ZoneIDs{}, fmt.Errorf("malformed zoneIds list: %w", err)
			}
			return ParseZoneIDs(inner)
		}
		return normalizeZoneList(strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		})), nil
	default:
		s, err := scalarString(v)
		if err != nil {
			return ZoneIDs{}, err
		}
		return normalizeZoneList([]string{s}), nil
	}
}

func scalarString(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported zone id value %v", v)
	}
}

func normalizeZoneList(ids []string) ZoneIDs {
	seen := make(map[string]struct{}, len(ids))
	var out ZoneIDs
	for _, id := range ids {
		id = strings.Trim(strings.TrimSpace(id), `"'`)
		if id == "" {
			continue
		}
		if id == WildcardZone {
			out.Wildcard = true
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out.IDs = append(out.IDs, id)
	}
	sort.Strings(out.IDs)
	return out
}

// PermissionFlags holds 0/1 capability flags. Booleans are accepted on the wire.
type PermissionFlags map[string]int

func (p *PermissionFlags) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	flags := make(PermissionFlags, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case bool:
			if v {
				flags[key] = 1
			} else {
				flags[key] = 0
			}
		case float64:
			flags[key] = int(v)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("permission %q has non numeric value %q", key, v)
			}
			flags[key] = n
		case nil:
			flags[key] = 0
		default:
			return fmt.Errorf("permission %q has unsupported value", key)
		}
	}
	*p = flags
	return nil
}
