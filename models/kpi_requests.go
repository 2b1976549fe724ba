package models

import (
	"encoding/json"
	"strings"
)

type CreateKPIRequest struct {
	EmployeeID  StringID `json:"employeeId"`
	ProjectName string   `json:"projectName" validate:"required"`
	Deadline    string   `json:"deadline" validate:"required"`
	StartDate   string   `json:"startDate"`
	Remark      string   `json:"remark"`
}

type UpdateKPIRequest struct {
	ProjectName *string `json:"projectName"`
	Remark      *string `json:"remark"`
	StartDate   *string `json:"startDate"`
	Deadline    *string `json:"deadline"`
	Timezone    *string `json:"timezone"`
}

type PunchRequest struct {
	Remark string `json:"remark"`
}

// QualityPointRequest keeps the raw value so that numeric and word forms can both be coerced.
type QualityPointRequest struct {
	QualityPoint  interface{} `json:"qualityPoint"`
	QualityPoints interface{} `json:"qualityPoints"`
}

func (r QualityPointRequest) Value() interface{} {
	if r.QualityPoint != nil {
		return r.QualityPoint
	}
	return r.QualityPoints
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			*l = StringList{s}
		} else {
			*l = nil
		}
		return nil
	}
	var many []interface{}
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	out := make(StringList, 0, len(many))
	for _, v := range many {
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			b, _ := json.Marshal(t)
			s = string(b)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

const (
	PunchesAll    = "all"
	PunchesLatest = "latest"
	PunchesNone   = "none"
)

type KPIListRequest struct {
	Search            string     `json:"search"`
	StartDate         string     `json:"startDate"`
	EndDate           string     `json:"endDate"`
	Timezone          string     `json:"timezone"`
	ZoneID            string     `json:"zoneId"`
	EmployeeIDs       StringList `json:"employeeIds"`
	SortBy            string     `json:"sortBy"`
	SortOrder         string     `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page              int        `json:"page" validate:"omitempty,min=1"`
	PageSize          int        `json:"pageSize" validate:"omitempty,min=1,max=500"`
	Punches           string     `json:"punches" validate:"omitempty,oneof=all latest none"`
	All               bool       `json:"all"`
	IncludeEmployeeID bool       `json:"includeEmployeeId"`
}

type PunchView struct {
	PunchDate   string `json:"punchDate"`
	Remark      string `json:"remark"`
	PointChange int    `json:"pointChange"`
	Status      string `json:"status"`
}

type KPIView struct {
	KpiID         string      `json:"kpiId"`
	ZoneID        string      `json:"zoneId"`
	EmployeeID    string      `json:"employeeId"`
	EmployeeName  string      `json:"employeeName"`
	ProjectName   string      `json:"projectName"`
	Remark        string      `json:"remark"`
	StartDate     string      `json:"startDate"`
	Deadline      string      `json:"deadline"`
	DeadlineAt    string      `json:"deadlineAt"`
	Timezone      string      `json:"timezone"`
	Points        int         `json:"points"`
	QualityPoints *int        `json:"qualityPoints"`
	PunchCount    int         `json:"punchCount"`
	Punches       []PunchView `json:"punches,omitempty"`
	LastPunch     *PunchView  `json:"lastPunch,omitempty"`
	CreatedAt     string      `json:"createdAt"`
	UpdatedAt     string      `json:"updatedAt"`
}

type KPIPage struct {
	Items    []KPIView `json:"items"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

type PunchResult struct {
	KpiID       string `json:"kpiId"`
	PunchDate   string `json:"punchDate"`
	Remark      string `json:"remark"`
	Status      string `json:"status"`
	PointChange int    `json:"pointChange"`
	Points      int    `json:"points"`
}
