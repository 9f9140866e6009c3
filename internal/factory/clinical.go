package factory

import (
	"github.com/Bluer01/COPH/internal/models"
)

// buildChartevents 转换 MIMIC chartevents 子表记录
//
// bucket type 取记录自带的 label；记录内的 subject_id 覆盖运行配置的用户编号。
func (f *Factory) buildChartevents(rec models.Record) ([]models.MeasurementGroup, error) {
	raw, err := field(rec, "charttime")
	if err != nil {
		return nil, err
	}
	timestamp, err := parseTime(raw)
	if err != nil {
		return nil, err
	}

	label, err := field(rec, "label")
	if err != nil {
		return nil, err
	}
	value, err := field(rec, "value")
	if err != nil {
		return nil, err
	}
	subject, err := field(rec, "subject_id")
	if err != nil {
		return nil, err
	}
	uom, err := field(rec, "valueuom")
	if err != nil {
		return nil, err
	}

	return []models.MeasurementGroup{{
		UserID:   f.userID,
		DeviceID: f.deviceID,
		Type:     label,
		Period:   f.periodLabel(periodManualDay),
		Day:      dayOf(timestamp),
		ValueUOM: uom,
		Measurements: []models.Measurement{{
			Timestamp: timestamp,
			Value:     value,
		}},
		Context: map[string]any{
			"user_id":  subject,
			"valueuom": uom,
		},
	}}, nil
}

// buildMortality 转换 MIMIC 死亡标志记录（无内在时间戳，取当前时间）
func (f *Factory) buildMortality(rec models.Record) ([]models.MeasurementGroup, error) {
	subject, err := field(rec, "subject_id")
	if err != nil {
		return nil, err
	}
	flag, err := field(rec, "expire_flag")
	if err != nil {
		return nil, err
	}

	now := f.now().UTC()
	return []models.MeasurementGroup{{
		UserID:   f.userID,
		DeviceID: f.deviceID,
		Type:     "mortality",
		Period:   f.periodLabel(periodClinicStay),
		Day:      dayOf(now),
		Measurements: []models.Measurement{{
			Timestamp: now,
			Value: map[string]any{
				"subject_id": subject,
				"flag":       flag,
			},
		}},
	}}, nil
}

// buildDiagnoses 转换 MIMIC 诊断子表记录
func (f *Factory) buildDiagnoses(rec models.Record) ([]models.MeasurementGroup, error) {
	payload, err := fields(rec, "hadm_id", "seq_num", "icd9_code")
	if err != nil {
		return nil, err
	}
	title, err := field(rec, "title")
	if err != nil {
		return nil, err
	}
	payload["description"] = title

	user, err := field(rec, "user_id")
	if err != nil {
		return nil, err
	}

	now := f.now().UTC()
	return []models.MeasurementGroup{{
		UserID:   f.userID,
		DeviceID: f.deviceID,
		Type:     "diagnoses",
		Period:   f.periodLabel(periodClinicStay),
		Day:      dayOf(now),
		Measurements: []models.Measurement{{
			Timestamp: now,
			Value:     payload,
		}},
		Context: map[string]any{"user_id": user},
	}}, nil
}

// buildProcedures 转换 MIMIC 操作/手术子表记录
func (f *Factory) buildProcedures(rec models.Record) ([]models.MeasurementGroup, error) {
	payload, err := fields(rec, "hadm_id", "seq_num", "icd9_code", "description")
	if err != nil {
		return nil, err
	}
	subject, err := field(rec, "subject_id")
	if err != nil {
		return nil, err
	}

	now := f.now().UTC()
	return []models.MeasurementGroup{{
		UserID:   f.userID,
		DeviceID: f.deviceID,
		Type:     "procedures",
		Period:   f.periodLabel(periodProcedure),
		Day:      dayOf(now),
		Measurements: []models.Measurement{{
			Timestamp: now,
			Value:     payload,
		}},
		Context: map[string]any{"user_id": subject},
	}}, nil
}
