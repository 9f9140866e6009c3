package factory

import (
	"github.com/Bluer01/COPH/internal/models"
)

// sepsisFields MIMIC 脓毒症研究导出的列布局（逐列搬运进 information 载荷）
var sepsisFields = []string{
	"icustay_id", "hadm_id",
	"suspected_infection_time_poe", "suspected_infection_time_poe_days",
	"specimen_poe", "positiveculture_poe",
	"antibiotic_time_poe", "blood_culture_time", "blood_culture_positive",
	"ethnicity", "race_white", "race_black", "race_hispanic", "race_other",
	"metastatic_cancer", "diabetes", "bmi", "first_service",
	"hospital_expire_flag", "thirtyday_expire_flag",
	"sepsis_angus", "sepsis_martin", "sepsis_explicit",
	"septic_shock_explicit", "severe_sepsis_explicit",
	"sepsis_nqf", "sepsis_cdc", "sepsis_cdc_simple",
	"elixhauser_hospital", "vent", "sofa", "lods", "sirs",
	"qsofa", "qsofa_sysbp_score", "qsofa_gcs_score", "qsofa_resprate_score",
	"blood culture", "suspicion_poe", "abx_poe", "sepsis-3", "sofa>=2",
	"excluded", "intime", "outtime", "dbsource",
	"age", "gender", "is_male", "height", "weight",
	"icu_los", "hosp_los",
}

// buildSepsis 转换 MIMIC 脓毒症汇总记录
//
// 单主体单例模式：整条记录作为结构化载荷追加进 information 数组，
// 不参与按天分桶，每个主体上下文只对应一个逻辑文档。
func (f *Factory) buildSepsis(rec models.Record) ([]models.MeasurementGroup, error) {
	payload, err := fields(rec, sepsisFields...)
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
		Type:     KindSepsis,
		Period:   f.periodLabel(periodVarious),
		Day:      dayOf(now),
		Measurements: []models.Measurement{{
			Timestamp: now,
			Value:     payload,
		}},
		Context: map[string]any{"user_id": subject},
	}}, nil
}

// buildAdmission 转换 MIMIC 入院汇总记录（同为单主体单例模式）
func (f *Factory) buildAdmission(rec models.Record) ([]models.MeasurementGroup, error) {
	payload, err := fields(rec,
		"hadm_id", "admittime", "dischtime", "deathtime",
		"admission_type", "admission_location",
		"insurance", "ethnicity", "diagnosis", "hospital_expire_flag",
	)
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
		Type:     KindAdmission,
		Period:   f.periodLabel(periodAdmission),
		Day:      dayOf(now),
		Measurements: []models.Measurement{{
			Timestamp: now,
			Value:     payload,
		}},
		Context: map[string]any{"subject_id": subject},
	}}, nil
}
