package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/uxlens/uxaudit_backend/models"
	"github.com/uxlens/uxaudit_backend/utils"
	"github.com/xuri/excelize/v2"
)

func violationRow(f *excelize.File, sheet string, rowNo int, category string, v *models.Violation) {
	f.SetCellValue(sheet, "A"+fmt.Sprint(rowNo), category)
	f.SetCellValue(sheet, "B"+fmt.Sprint(rowNo), v.RuleId)
	f.SetCellValue(sheet, "C"+fmt.Sprint(rowNo), string(v.Severity))
	f.SetCellValue(sheet, "D"+fmt.Sprint(rowNo), v.Message)
	if v.MeasuredValue != nil {
		f.SetCellValue(sheet, "E"+fmt.Sprint(rowNo), *v.MeasuredValue)
	}
	if v.Threshold != nil {
		f.SetCellValue(sheet, "F"+fmt.Sprint(rowNo), *v.Threshold)
	}
	f.SetCellValue(sheet, "G"+fmt.Sprint(rowNo), v.Found)
	f.SetCellValue(sheet, "H"+fmt.Sprint(rowNo), v.Expected)
	f.SetCellValue(sheet, "I"+fmt.Sprint(rowNo), v.PatternDetected)
}

// buildAuditReportXLSX renders a completed audit result as a spreadsheet with
// a summary sheet and one violations sheet.
func buildAuditReportXLSX(result *models.AuditResult) (*excelize.File, error) {
	f := excelize.NewFile()

	summarySheet := "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	f.SetCellValue(summarySheet, "A1", "RecordingId")
	f.SetCellValue(summarySheet, "B1", result.RecordingId)
	f.SetCellValue(summarySheet, "A2", "TotalFrames")
	f.SetCellValue(summarySheet, "B2", result.TotalFrames)
	f.SetCellValue(summarySheet, "A3", "DurationMs")
	f.SetCellValue(summarySheet, "B3", result.DurationMs)
	f.SetCellValue(summarySheet, "A4", "TotalViolations")
	f.SetCellValue(summarySheet, "B4", result.Summary.TotalViolations)
	f.SetCellValue(summarySheet, "A5", "Errors")
	f.SetCellValue(summarySheet, "B5", result.Summary.Errors)
	f.SetCellValue(summarySheet, "A6", "Warnings")
	f.SetCellValue(summarySheet, "B6", result.Summary.Warnings)
	f.SetCellValue(summarySheet, "A7", "TemporalMetrics")
	f.SetCellValue(summarySheet, "B7", result.Summary.TemporalMetricsCount)

	sheet := "Violations"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(sheet, "A1", "Category")
	f.SetCellValue(sheet, "B1", "RuleId")
	f.SetCellValue(sheet, "C1", "Severity")
	f.SetCellValue(sheet, "D1", "Message")
	f.SetCellValue(sheet, "E1", "MeasuredValue")
	f.SetCellValue(sheet, "F1", "Threshold")
	f.SetCellValue(sheet, "G1", "Found")
	f.SetCellValue(sheet, "H1", "Expected")
	f.SetCellValue(sheet, "I1", "PatternDetected")

	rowNo := 2
	for _, v := range result.TemporalViolations {
		violationRow(f, sheet, rowNo, string(models.RuleCategoryTemporal), v)
		rowNo++
	}
	for _, v := range result.BehavioralViolations {
		violationRow(f, sheet, rowNo, string(models.RuleCategoryBehavioral), v)
		rowNo++
	}
	for _, v := range result.SpatialViolations {
		violationRow(f, sheet, rowNo, string(models.RuleCategorySpatial), v)
		rowNo++
	}
	for _, v := range result.PatternViolations {
		violationRow(f, sheet, rowNo, string(models.RuleCategoryPattern), v)
		rowNo++
	}

	return f, nil
}

func getAuditReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		recording, err := models.GetRecordingById(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "recording not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if recording.Status != models.RecordingStatusCompleted {
			c.JSON(http.StatusConflict, gin.H{
				"error":  "audit result is not available",
				"status": recording.Status,
			})
			return
		}

		payload, err := models.GetAuditResultPayload(c.Request.Context(), recording.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var result models.AuditResult
		if err := utils.UnmarshalFromJSON(payload, &result); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f, err := buildAuditReportXLSX(&result)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+recording.ID+".xlsx")
		if err := f.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}
