// Package factory 提供设备多态的样本工厂
//
// 将一条原始记录转换为一个或多个归一化的 MeasurementGroup，包括：
// - 设备专属的时间戳解析（epoch 秒、ISO-8601、固定格式、无时间戳取当前时间）
// - 测量字段与上下文字段（合并进 bucket 过滤条件）的划分
// - 设备级采样周期常量
// - 处方记录的多天展开与剂量序号推导
//
// 分发表为封闭集合：新增设备只需注册一个构建函数，不修改共享分支。
package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Bluer01/COPH/internal/models"
)

// 设备类别标识
const (
	KindMoveECG       = "move_ecg"
	KindFlow          = "flow"
	KindAmazfitBip    = "amazfit_bip"
	KindChartevents   = "mimic_chartevents"
	KindMortality     = "mimic_mortality"
	KindDiagnoses     = "mimic_diagnoses"
	KindPrescriptions = "mimic_prescriptions"
	KindProcedures    = "mimic_procedures"
	KindSepsis        = "mimic_sepsis"
	KindAdmission     = "mimic_admission"
)

// 设备级采样周期常量
const (
	periodPerMinute  = "1/min"
	periodHalfMinute = "30 seconds"
	periodManualDay  = "Manual/day"
	periodClinicStay = "Clinic stay"
	periodProcedure  = "Admission or after procedure"
	periodVarious    = "Various"
	periodAdmission  = "Admission"
)

// UnsupportedDeviceError 设备类别没有注册转换器
//
// 在工厂构造阶段抛出：没有转换器可分发时整个运行直接失败。
type UnsupportedDeviceError struct {
	Kind string
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("unsupported device kind: %s", e.Kind)
}

type buildFunc func(rec models.Record) ([]models.MeasurementGroup, error)

// Factory 样本工厂
//
// 除处方设备的剂量序号账本外无跨记录状态。
type Factory struct {
	kind     string
	userID   string
	deviceID string

	// period 运行级采样周期覆盖；为空时用设备级常量
	period string

	ledger *DosageLedger
	logger *zap.Logger
	build  buildFunc

	// now 可注入，便于测试无内在时间戳的设备
	now func() time.Time
}

// New 创建样本工厂
// kind 为设备名，userID/deviceID 为已解析的用户编号与设备编号，
// period 为空时使用设备级周期常量
func New(kind, userID, deviceID, period string, logger *zap.Logger) (*Factory, error) {
	f := &Factory{
		kind:     kind,
		userID:   userID,
		deviceID: deviceID,
		period:   period,
		ledger:   NewDosageLedger(),
		logger:   logger,
		now:      time.Now,
	}

	builders := map[string]buildFunc{
		KindMoveECG:       f.buildMoveECG,
		KindFlow:          f.buildFlow,
		KindAmazfitBip:    f.buildAmazfitBip,
		KindChartevents:   f.buildChartevents,
		KindMortality:     f.buildMortality,
		KindDiagnoses:     f.buildDiagnoses,
		KindPrescriptions: f.buildPrescriptions,
		KindProcedures:    f.buildProcedures,
		KindSepsis:        f.buildSepsis,
		KindAdmission:     f.buildAdmission,
	}

	build, ok := builders[kind]
	if !ok {
		return nil, &UnsupportedDeviceError{Kind: kind}
	}
	f.build = build

	return f, nil
}

// Kind 返回设备类别
func (f *Factory) Kind() string {
	return f.kind
}

// CreateSamples 将一条原始记录转换为归一化的测量组
// 空组在此丢弃，不进入分桶
func (f *Factory) CreateSamples(rec models.Record) ([]models.MeasurementGroup, error) {
	groups, err := f.build(rec)
	if err != nil {
		return nil, err
	}

	result := groups[:0]
	for _, g := range groups {
		if g.Empty() {
			continue
		}
		result = append(result, g)
	}

	return result, nil
}

// Validate 记录级前置校验；false 表示记录在转换前即被丢弃
//
// 目前只有处方设备有前置条件：起止日期全为空的记录不可用。
func (f *Factory) Validate(rec models.Record) bool {
	if f.kind == KindPrescriptions {
		return rec["startdate"] != "" || rec["enddate"] != ""
	}
	return true
}

// SeedDosages 预加载已持久化的剂量序号（运行开始前由引擎调用）
func (f *Factory) SeedDosages(records []models.DosageRecord) {
	f.ledger.Seed(records)
}

// periodLabel 该设备的采样周期标签；运行级覆盖优先
func (f *Factory) periodLabel(deviceDefault string) string {
	if f.period != "" {
		return f.period
	}
	return deviceDefault
}

// field 取必填字段，缺失视为该条记录转换失败
func field(rec models.Record, key string) (string, error) {
	value, ok := rec[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	return value, nil
}

// fields 批量取必填字段并转为上下文 map
func fields(rec models.Record, keys ...string) (map[string]any, error) {
	result := make(map[string]any, len(keys))
	for _, key := range keys {
		value, err := field(rec, key)
		if err != nil {
			return nil, err
		}
		result[key] = value
	}
	return result, nil
}

// ISO-8601 及其常见变体
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// parseTime 解析 ISO-8601 时间戳（含日期-only 变体）
func parseTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp: %q", value)
}

// dayOf 时间戳所属的日历日（UTC 零点）
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
