package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// StringID decodes identifiers that older documents stored as numbers.
type StringID string

func (id *StringID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	if s, ok := raw.StringValueOK(); ok {
		*id = StringID(s)
		return nil
	}
	if n, ok := raw.Int32OK(); ok {
		*id = StringID(strconv.FormatInt(int64(n), 10))
		return nil
	}
	if n, ok := raw.Int64OK(); ok {
		*id = StringID(strconv.FormatInt(n, 10))
		return nil
	}
	if f, ok := raw.DoubleOK(); ok {
		*id = StringID(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	if t == bsontype.Null || t == bsontype.Undefined {
		*id = ""
		return nil
	}
	return fmt.Errorf("cannot decode %s into an identifier", t)
}

func (id StringID) String() string {
	return string(id)
}

// IDVariants returns the representations an identifier may be stored under.
func IDVariants(id string) []interface{} {
	variants := []interface{}{id}
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		variants = append(variants, n, int32(n), float64(n))
	}
	return variants
}

// Employee is the read-only projection of the employee directory used by the KPI core.
type Employee struct {
	EmployeeID StringID `json:"employeeId" bson:"employeeId"`
	Name       string   `json:"name" bson:"name"`
	ZoneID     string   `json:"zoneId" bson:"zoneId"`
	Timezone   string   `json:"timezone,omitempty" bson:"timezone,omitempty"`
	TZ         string   `json:"tz,omitempty" bson:"tz,omitempty"`
	Office     string   `json:"office,omitempty" bson:"office,omitempty"`
	Branch     string   `json:"branch,omitempty" bson:"branch,omitempty"`
	Location   string   `json:"location,omitempty" bson:"location,omitempty"`
}

type Zone struct {
	ZoneID   string `json:"zoneId" bson:"zoneId"`
	Name     string `json:"name" bson:"name"`
	Code     string `json:"code" bson:"code"`
	Timezone string `json:"timezone" bson:"timezone"`
	IsActive bool   `json:"isActive" bson:"isActive"`
}

// UnmarshalJSON accepts both quoted and numeric identifiers.
func (id *StringID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cannot decode %s into an identifier", string(data))
	}
	*id = StringID(n.String())
	return nil
}
