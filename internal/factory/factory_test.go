package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/models"
)

func newTestFactory(t *testing.T, kind string) *Factory {
	f, err := New(kind, "anon", "2", "", zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestNew_UnsupportedDevice(t *testing.T) {
	_, err := New("smart_toaster", "anon", "99", "", zap.NewNop())
	require.Error(t, err)

	var unsupported *UnsupportedDeviceError
	assert.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "smart_toaster", unsupported.Kind)
}

func TestCreateSamples_AmazfitBip(t *testing.T) {
	f := newTestFactory(t, KindAmazfitBip)

	rec := models.Record{
		"TIMESTAMP":     "1587600000",
		"RAW_INTENSITY": "57",
		"STEPS":         "12",
		"HEART_RATE":    "71",
		"RAW_KIND":      "1",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "anon", g.UserID)
	assert.Equal(t, "2", g.DeviceID)
	assert.Equal(t, KindAmazfitBip, g.Type)
	assert.Equal(t, "1/min", g.Period)
	require.Len(t, g.Measurements, 4)

	expected := time.Unix(1587600000, 0).UTC()
	expectedDay := time.Date(expected.Year(), expected.Month(), expected.Day(), 0, 0, 0, 0, time.UTC)
	assert.True(t, g.Day.Equal(expectedDay))

	names := make([]string, 0, 4)
	for _, m := range g.Measurements {
		names = append(names, m.Name)
		assert.True(t, m.Timestamp.Equal(expected))
	}
	assert.Equal(t, []string{"RAW_INTENSITY", "STEPS", "HEART_RATE", "RAW_KIND"}, names)
	assert.Equal(t, "71", g.Measurements[2].Value)
}

func TestCreateSamples_AmazfitBip_MissingField(t *testing.T) {
	f := newTestFactory(t, KindAmazfitBip)

	_, err := f.CreateSamples(models.Record{"TIMESTAMP": "1587600000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAW_INTENSITY")
}

func TestCreateSamples_AmazfitBip_BadTimestamp(t *testing.T) {
	f := newTestFactory(t, KindAmazfitBip)

	_, err := f.CreateSamples(models.Record{
		"TIMESTAMP":     "not-a-number",
		"RAW_INTENSITY": "57",
		"STEPS":         "12",
		"HEART_RATE":    "71",
		"RAW_KIND":      "1",
	})
	require.Error(t, err)
}

func TestCreateSamples_Flow(t *testing.T) {
	f := newTestFactory(t, KindFlow)

	rec := models.Record{
		"date":      "2020-03-14 09:30:00",
		"NO2":       "21",
		"VOC":       "110",
		"PM 10":     "8",
		"PM25":      "5",
		"AQI NO2":   "12",
		"AQI VOC":   "33",
		"AQI PM 10": "9",
		"AQI PM 25": "7",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, KindFlow, g.Type)
	require.Len(t, g.Measurements, 8)

	// 原始字段名带空格的指标归一化为标准标签
	byName := map[string]any{}
	for _, m := range g.Measurements {
		byName[m.Name] = m.Value
	}
	assert.Equal(t, "8", byName["PM10"])
	assert.Equal(t, "9", byName["AQI PM10"])
	assert.True(t, g.Day.Equal(time.Date(2020, 3, 14, 0, 0, 0, 0, time.UTC)))
}

func TestCreateSamples_MoveECG_Context(t *testing.T) {
	f := newTestFactory(t, KindMoveECG)

	rec := models.Record{
		"date":         "2020-01-06T12:26:00",
		"signal":       "-23,-11,4,18",
		"format":       "16bit",
		"frequency":    "300",
		"size":         "9000",
		"totalsize":    "9000",
		"wearposition": "1",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, KindMoveECG, g.Type)
	assert.Equal(t, "30 seconds", g.Period)
	require.Len(t, g.Measurements, 1)
	assert.Equal(t, "ECG", g.Measurements[0].Name)
	assert.Equal(t, "-23,-11,4,18", g.Measurements[0].Value)

	assert.Equal(t, "16bit", g.Context["format"])
	assert.Equal(t, "9000", g.Context["total_size"])
	assert.Equal(t, "1", g.Context["wear_position"])
}

func TestCreateSamples_Chartevents(t *testing.T) {
	f := newTestFactory(t, KindChartevents)

	rec := models.Record{
		"charttime":  "2150-07-10 14:00:00",
		"label":      "Heart Rate",
		"value":      "88",
		"valueuom":   "bpm",
		"subject_id": "10006",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "Heart Rate", g.Type)
	assert.Equal(t, "Manual/day", g.Period)
	assert.Equal(t, "bpm", g.ValueUOM)
	assert.Equal(t, "10006", g.Context["user_id"])
	assert.Equal(t, "bpm", g.Context["valueuom"])
	require.Len(t, g.Measurements, 1)
	assert.Equal(t, "88", g.Measurements[0].Value)
}

func TestCreateSamples_Diagnoses(t *testing.T) {
	f := newTestFactory(t, KindDiagnoses)
	f.now = func() time.Time { return time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC) }

	rec := models.Record{
		"hadm_id":   "142345",
		"seq_num":   "1",
		"icd9_code": "99591",
		"title":     "Sepsis",
		"user_id":   "10006",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, "diagnoses", g.Type)
	assert.Equal(t, "Clinic stay", g.Period)
	assert.Equal(t, "10006", g.Context["user_id"])

	payload, ok := g.Measurements[0].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "99591", payload["icd9_code"])
	assert.Equal(t, "Sepsis", payload["description"])
	assert.True(t, g.Day.Equal(time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCreateSamples_Admission_Payload(t *testing.T) {
	f := newTestFactory(t, KindAdmission)

	rec := models.Record{
		"subject_id":           "10006",
		"hadm_id":              "142345",
		"admittime":            "2164-10-23 21:09:00",
		"dischtime":            "2164-11-01 17:15:00",
		"deathtime":            "",
		"admission_type":       "EMERGENCY",
		"admission_location":   "EMERGENCY ROOM ADMIT",
		"insurance":            "Medicare",
		"ethnicity":            "BLACK/AFRICAN AMERICAN",
		"diagnosis":            "SEPSIS",
		"hospital_expire_flag": "0",
	}

	groups, err := f.CreateSamples(rec)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	g := groups[0]
	assert.Equal(t, KindAdmission, g.Type)
	assert.Equal(t, "Admission", g.Period)
	assert.Equal(t, "10006", g.Context["subject_id"])

	payload, ok := g.Measurements[0].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "EMERGENCY", payload["admission_type"])
	assert.Equal(t, "SEPSIS", payload["diagnosis"])
	// subject_id 属于上下文，不进载荷
	_, inPayload := payload["subject_id"]
	assert.False(t, inPayload)
}

func TestCreateSamples_PeriodOverride(t *testing.T) {
	f, err := New(KindAmazfitBip, "anon", "2", "5/min", zap.NewNop())
	require.NoError(t, err)

	groups, err := f.CreateSamples(models.Record{
		"TIMESTAMP":     "1587600000",
		"RAW_INTENSITY": "57",
		"STEPS":         "12",
		"HEART_RATE":    "71",
		"RAW_KIND":      "1",
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "5/min", groups[0].Period)
}

func TestValidate_PrescriptionsDates(t *testing.T) {
	f := newTestFactory(t, KindPrescriptions)

	assert.False(t, f.Validate(models.Record{"startdate": "", "enddate": ""}))
	assert.True(t, f.Validate(models.Record{"startdate": "2020-01-01", "enddate": ""}))
	assert.True(t, f.Validate(models.Record{"startdate": "", "enddate": "2020-01-02"}))

	other := newTestFactory(t, KindAmazfitBip)
	assert.True(t, other.Validate(models.Record{}))
}
