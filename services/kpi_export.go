package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"kpitracker/access"
	"kpitracker/models"
	"kpitracker/utils"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "KPIs"

var exportColumns = []string{
	"Employee Name",
	"Project Name",
	"Start Date",
	"Deadline",
	"Timezone",
	"Points",
	"Quality Points",
	"Remark",
	"Punch Count",
	"Last Punch Date",
	"Last Punch Status",
}

// exportTable selects records exactly as ListKPIs would and flattens them.
// Identifiers are left out unless includeEmployeeId is set.
func (s *kpiService) exportTable(ctx context.Context, scope access.Scope, req models.KPIListRequest) ([]string, [][]string, error) {
	req.Punches = models.PunchesLatest
	plan, err := s.planQuery(ctx, scope, req, true)
	if err != nil {
		return nil, nil, err
	}

	header := append([]string(nil), exportColumns...)
	if req.IncludeEmployeeID {
		header = append([]string{"Employee ID"}, header...)
	}
	if plan.empty {
		return header, [][]string{}, nil
	}

	kpis, total, err := s.fetch(ctx, plan)
	if err != nil {
		return nil, nil, err
	}
	if req.All && total > int64(s.exportMaxRows) {
		return nil, nil, utils.NewValidationError("all",
			fmt.Sprintf("Export exceeds %d rows, narrow the filters", s.exportMaxRows))
	}

	rows := make([][]string, 0, len(kpis))
	for _, k := range kpis {
		v := s.render(k, models.PunchesLatest)
		quality := ""
		if v.QualityPoints != nil {
			quality = strconv.Itoa(*v.QualityPoints)
		}
		lastDate, lastStatus := "", ""
		if v.LastPunch != nil {
			lastDate, lastStatus = v.LastPunch.PunchDate, v.LastPunch.Status
		}
		row := []string{
			v.EmployeeName,
			v.ProjectName,
			v.StartDate,
			v.Deadline,
			v.Timezone,
			strconv.Itoa(v.Points),
			quality,
			v.Remark,
			strconv.Itoa(v.PunchCount),
			lastDate,
			lastStatus,
		}
		if req.IncludeEmployeeID {
			row = append([]string{v.EmployeeID}, row...)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (s *kpiService) ExportKPIsCSV(ctx context.Context, scope access.Scope, req models.KPIListRequest, w io.Writer) error {
	header, rows, err := s.exportTable(ctx, scope, req)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return utils.NewInternalError("failed to write CSV", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return utils.NewInternalError("failed to write CSV", err)
	}
	return nil
}

func (s *kpiService) ExportKPIsXLSX(ctx context.Context, scope access.Scope, req models.KPIListRequest, w io.Writer) error {
	header, rows, err := s.exportTable(ctx, scope, req)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return utils.NewInternalError("failed to prepare workbook", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return utils.NewInternalError("failed to prepare workbook", err)
	}

	writeRow := func(n int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		out := make([]interface{}, len(values))
		for i, v := range values {
			out[i] = v
		}
		return sw.SetRow(cell, out)
	}

	if err := writeRow(1, header); err != nil {
		return utils.NewInternalError("failed to write workbook header", err)
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return utils.NewInternalError(fmt.Sprintf("failed to write workbook row %d", i+1), err)
		}
	}
	if err := sw.Flush(); err != nil {
		return utils.NewInternalError("failed to write workbook", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return utils.NewInternalError("failed to write workbook", err)
	}
	return nil
}
