package factory

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Bluer01/COPH/internal/models"
)

// buildAmazfitBip 转换 Amazfit Bip 手环记录
//
// TIMESTAMP 为 epoch 秒；每个指标独立分桶（RAW_INTENSITY/STEPS/HEART_RATE/RAW_KIND）。
func (f *Factory) buildAmazfitBip(rec models.Record) ([]models.MeasurementGroup, error) {
	raw, err := field(rec, "TIMESTAMP")
	if err != nil {
		return nil, err
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable epoch timestamp %q: %w", raw, err)
	}
	timestamp := time.Unix(epoch, 0).UTC()

	var measurements []models.Measurement
	for _, key := range []string{"RAW_INTENSITY", "STEPS", "HEART_RATE", "RAW_KIND"} {
		value, err := field(rec, key)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, models.Measurement{
			Name:      key,
			Timestamp: timestamp,
			Value:     value,
		})
	}

	return []models.MeasurementGroup{{
		UserID:       f.userID,
		DeviceID:     f.deviceID,
		Type:         KindAmazfitBip,
		Period:       f.periodLabel(periodPerMinute),
		Day:          dayOf(timestamp),
		Measurements: measurements,
	}}, nil
}

// flow 空气质量传感器的指标标签与原始字段名
var flowMetrics = []struct {
	name string
	key  string
}{
	{"NO2", "NO2"},
	{"VOC", "VOC"},
	{"PM10", "PM 10"},
	{"PM25", "PM25"},
	{"AQI NO2", "AQI NO2"},
	{"AQI VOC", "AQI VOC"},
	{"AQI PM10", "AQI PM 10"},
	{"AQI PM25", "AQI PM 25"},
}

// buildFlow 转换 Flow 空气质量传感器记录
func (f *Factory) buildFlow(rec models.Record) ([]models.MeasurementGroup, error) {
	raw, err := field(rec, "date")
	if err != nil {
		return nil, err
	}
	timestamp, err := time.Parse("2006-01-02 15:04:05", raw)
	if err != nil {
		return nil, fmt.Errorf("unparseable timestamp %q: %w", raw, err)
	}

	var measurements []models.Measurement
	for _, metric := range flowMetrics {
		value, err := field(rec, metric.key)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, models.Measurement{
			Name:      metric.name,
			Timestamp: timestamp,
			Value:     value,
		})
	}

	return []models.MeasurementGroup{{
		UserID:       f.userID,
		DeviceID:     f.deviceID,
		Type:         KindFlow,
		Period:       f.periodLabel(periodPerMinute),
		Day:          dayOf(timestamp),
		Measurements: measurements,
	}}, nil
}

// buildMoveECG 转换 Move ECG 心电记录
//
// 信号元数据（格式、频率、大小、佩戴位置）作为上下文合并进 bucket 过滤条件。
func (f *Factory) buildMoveECG(rec models.Record) ([]models.MeasurementGroup, error) {
	raw, err := field(rec, "date")
	if err != nil {
		return nil, err
	}
	timestamp, err := parseTime(raw)
	if err != nil {
		return nil, err
	}

	signal, err := field(rec, "signal")
	if err != nil {
		return nil, err
	}

	meta, err := fields(rec, "format", "frequency", "size", "totalsize", "wearposition")
	if err != nil {
		return nil, err
	}
	context := map[string]any{
		"format":        meta["format"],
		"frequency":     meta["frequency"],
		"size":          meta["size"],
		"total_size":    meta["totalsize"],
		"wear_position": meta["wearposition"],
	}

	return []models.MeasurementGroup{{
		UserID:   f.userID,
		DeviceID: f.deviceID,
		Type:     KindMoveECG,
		Period:   f.periodLabel(periodHalfMinute),
		Day:      dayOf(timestamp),
		Measurements: []models.Measurement{{
			Name:      "ECG",
			Timestamp: timestamp,
			Value:     signal,
		}},
		Context: context,
	}}, nil
}
