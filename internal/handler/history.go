package handler

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"inout-backend/internal/domain"
	"inout-backend/internal/repository"
	"inout-backend/internal/server/authctx"
	"inout-backend/internal/timeutil"
)

type HistoryHandler struct {
	Users      repository.Users
	Attendance repository.Attendance
}

func (h HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/attendance/history", h.listSelf)
	r.Get("/attendance/history/export", h.exportSelf)
}

func (h HistoryHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/admin/attendance", h.listEmployee)
	r.Get("/admin/attendance/export", h.exportEmployee)
}

// resolveEmployeeID maps the signed-in user to the badge id records
// are keyed by.
func (h HistoryHandler) resolveEmployeeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	current := authctx.FromContext(r.Context())
	if current == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	user, err := h.Users.Get(r.Context(), current.UID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return "", false
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	}
	if user.EmployeeID == nil || *user.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee id not assigned")
		return "", false
	}
	return *user.EmployeeID, true
}

func monthRange(r *http.Request) (from, to string, err error) {
	monthStr := r.URL.Query().Get("month")
	if monthStr == "" {
		return "", "", errors.New("month is required")
	}
	month, err := time.Parse(timeutil.MonthLayout, monthStr)
	if err != nil {
		return "", "", errors.New("invalid month format")
	}
	from = timeutil.DateID(month)
	to = timeutil.DateID(month.AddDate(0, 1, -1))
	return from, to, nil
}

func (h HistoryHandler) listSelf(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.resolveEmployeeID(w, r)
	if !ok {
		return
	}
	h.list(w, r, employeeID)
}

func (h HistoryHandler) listEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employeeId is required")
		return
	}
	h.list(w, r, employeeID)
}

func (h HistoryHandler) list(w http.ResponseWriter, r *http.Request, employeeID string) {
	from, to, err := monthRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Attendance.ListRange(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, rec := range items {
		resp = append(resp, recordJSON(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h HistoryHandler) exportSelf(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := h.resolveEmployeeID(w, r)
	if !ok {
		return
	}
	h.export(w, r, employeeID)
}

func (h HistoryHandler) exportEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		writeError(w, http.StatusBadRequest, "employeeId is required")
		return
	}
	h.export(w, r, employeeID)
}

func (h HistoryHandler) export(w http.ResponseWriter, r *http.Request, employeeID string) {
	from, to, err := monthRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.Attendance.ListRange(r.Context(), employeeID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "csv":
		data, err := exportHistoryCSV(items)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s.csv"`, employeeID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case "", "xlsx":
		data, err := exportHistoryXLSX(items)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s.xlsx"`, employeeID))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "invalid format (use csv or xlsx)")
	}
}

func historyRow(rec *domain.AttendanceRecord) []string {
	return []string{
		rec.DateID,
		rec.EmployeeID,
		rec.EmployeeName,
		derefString(rec.CheckInTime),
		derefString(rec.CheckOutTime),
		derefString(rec.TotalHours),
		fmt.Sprintf("%.1f", rec.DistanceMeters),
		rec.LocationName,
		fmt.Sprint(rec.MovementLog),
	}
}

func exportHistoryCSV(items []*domain.AttendanceRecord) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"date", "employee_id", "employee_name", "check_in", "check_out", "total_hours", "distance_m", "location", "movement_log"})
	for _, rec := range items {
		_ = w.Write(historyRow(rec))
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportHistoryXLSX(items []*domain.AttendanceRecord) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Attendance"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	header := []string{"Date", "Employee ID", "Employee Name", "Check In", "Check Out", "Total Hours", "Distance (m)", "Location", "Movement Log"}
	for c, v := range header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		_ = f.SetCellValue(sheet, cell, v)
	}
	for rIdx, rec := range items {
		for c, v := range historyRow(rec) {
			cell, _ := excelize.CoordinatesToCellName(c+1, rIdx+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "C", 18)
	_ = f.SetColWidth(sheet, "D", "F", 12)
	_ = f.SetColWidth(sheet, "G", "G", 12)
	_ = f.SetColWidth(sheet, "H", "I", 28)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	_ = f.SetCellStyle(sheet, "A1", "I1", style)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
