package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PointsPending = -1
	PointsScored  = 1

	PunchOnTime = "On Time"
	PunchLate   = "Late Submission"
)

type KPI struct {
	ID            primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	KpiID         string             `json:"kpiId" bson:"kpiId"`
	ZoneID        string             `json:"zoneId" bson:"zoneId,omitempty"`
	EmployeeID    StringID           `json:"employeeId" bson:"employeeId"`
	EmployeeName  string             `json:"employeeName" bson:"employeeName,omitempty"`
	ProjectName   string             `json:"projectName" bson:"project_name"`
	Remark        string             `json:"remark" bson:"remark"`
	StartDate     time.Time          `json:"startDate" bson:"startdate"`
	Deadline      time.Time          `json:"deadline" bson:"deadline"`
	Timezone      string             `json:"timezone" bson:"timezone,omitempty"`
	Points        int                `json:"points" bson:"points"`
	QualityPoints *int               `json:"qualityPoints" bson:"qualityPoints"`
	Punches       []Punch            `json:"punches" bson:"punches"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// IsPending reports whether the record has not scored yet. Records written
// without a points field decode as 0 and count as pending.
func (k *KPI) IsPending() bool {
	return k.Points != PointsScored
}

// NeedsBackfill reports whether any field added after the first records were
// written is missing.
func (k *KPI) NeedsBackfill() bool {
	return k.ZoneID == "" || k.Timezone == "" || k.EmployeeName == "" || k.Points == 0
}

// Punch entries are append-only.
type Punch struct {
	PunchDate   time.Time `json:"punchDate" bson:"punchDate"`
	Remark      string    `json:"remark" bson:"remark"`
	PointChange int       `json:"pointChange" bson:"pointChange"`
	Status      string    `json:"status" bson:"status"`
}

// KPIChanges carries the fields an update sets. Nil fields are left untouched.
type KPIChanges struct {
	ProjectName *string
	Remark      *string
	StartDate   *time.Time
	Deadline    *time.Time
	Timezone    *string
	UpdatedAt   time.Time
}

// LegacyPatch backfills denormalized fields missing on older records.
type LegacyPatch struct {
	ZoneID       string
	Timezone     string
	EmployeeName string
	// PendingPoints sets points to pending where the field is missing.
	PendingPoints bool
}

func (p LegacyPatch) IsEmpty() bool {
	return p.ZoneID == "" && p.Timezone == "" && p.EmployeeName == "" && !p.PendingPoints
}

// KPIQuery is the store-level filter produced by the query engine.
type KPIQuery struct {
	EmployeeIDs []string
	Search      string
	StartFrom   *time.Time
	StartTo     *time.Time
	SortField   string
	SortDesc    bool
	Skip        int64
	Limit       int64
}

// EmployeeSummary is one row of the per-employee performance aggregate.
type EmployeeSummary struct {
	EmployeeID      StringID `json:"employeeId" bson:"_id"`
	EmployeeName    string   `json:"employeeName" bson:"employeeName"`
	Total           int      `json:"total" bson:"total"`
	Scored          int      `json:"scored" bson:"scored"`
	Pending         int      `json:"pending" bson:"pending"`
	QualityPositive int      `json:"qualityPositive" bson:"qualityPositive"`
	QualityNegative int      `json:"qualityNegative" bson:"qualityNegative"`
	Punches         int      `json:"punches" bson:"punches"`
	LatePunches     int      `json:"latePunches" bson:"latePunches"`
}
