package factory

import (
	"strings"
	"time"

	"github.com/Bluer01/COPH/internal/models"
)

// buildPrescriptions 转换 MIMIC 处方记录
//
// 多天展开：处方覆盖 [startdate, enddate) 的每个日历日，各生成一个测量组。
// 日期兜底规则：
//   - startdate 不可解析 → 以 enddate 同时作为起止（展开为空，记录被丢弃）
//   - enddate 不可解析 → 默认为 startdate + 1 天
//
// 每天的剂量序号由账本推导（已持久化最大值、本次运行已分配值、同日药名
// 包含关系三者取最大后加一），保证同一 (subject, day, drug) 组合内严格递增。
func (f *Factory) buildPrescriptions(rec models.Record) ([]models.MeasurementGroup, error) {
	rawStart, err := field(rec, "startdate")
	if err != nil {
		return nil, err
	}
	rawEnd, err := field(rec, "enddate")
	if err != nil {
		return nil, err
	}

	start, startErr := parseTime(rawStart)
	end, endErr := parseTime(rawEnd)
	if startErr != nil {
		if endErr != nil {
			return nil, startErr
		}
		start = end
	}
	if endErr != nil {
		end = start.AddDate(0, 0, 1)
	}

	drug, err := field(rec, "drug")
	if err != nil {
		return nil, err
	}
	doseValue, err := field(rec, "dose_val_rx")
	if err != nil {
		return nil, err
	}
	doseUnit, err := field(rec, "dose_unit_rx")
	if err != nil {
		return nil, err
	}
	subject, err := field(rec, "subject_id")
	if err != nil {
		return nil, err
	}

	var groups []models.MeasurementGroup
	for _, date := range enumerateDays(start, end) {
		day := date.Format("2006-01-02")
		num := f.ledger.Next(subject, day, drug)

		groups = append(groups, models.MeasurementGroup{
			UserID:   f.userID,
			DeviceID: f.deviceID,
			Type:     "prescriptions",
			Period:   f.periodLabel(periodManualDay),
			Day:      dayOf(date),
			Measurements: []models.Measurement{{
				Timestamp: dayOf(date),
				Value: map[string]any{
					"day":             day,
					"drug":            drug,
					"dose_value":      doseValue,
					"dose_unit":       doseUnit,
					"drug_dosage_num": num,
				},
			}},
			Context: map[string]any{"user_id": subject},
		})
	}

	return groups, nil
}

// enumerateDays 枚举 [start, end) 内的日历日，end 为开区间
// end 不晚于 start 时窗口为空（起止颠倒的记录展开为空后整体丢弃）
func enumerateDays(start, end time.Time) []time.Time {
	n := int(end.Sub(start).Hours() / 24)
	if n <= 0 {
		return nil
	}
	days := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, start.AddDate(0, 0, i))
	}
	return days
}

// DosageLedger 剂量序号账本
//
// 运行内状态：记录已持久化以及本次运行内已分配的 (subject, day, drug) →
// 序号，推导下一序号。按 subject 分区，不同主体共享药名/日期也互不影响；
// 不跨运行共享。
type DosageLedger struct {
	persisted map[string]int
	entries   []dosageEntry
}

type dosageEntry struct {
	subject string
	day     string
	drug    string
	num     int
}

// NewDosageLedger 创建空账本
func NewDosageLedger() *DosageLedger {
	return &DosageLedger{persisted: make(map[string]int)}
}

// Seed 预加载已持久化的剂量序号（同组合取最大值）
func (l *DosageLedger) Seed(records []models.DosageRecord) {
	for _, r := range records {
		key := r.Subject + "|" + r.Day + "|" + r.Drug
		if r.Num > l.persisted[key] {
			l.persisted[key] = r.Num
		}
	}
}

// Next 推导并登记 (subject, day, drug) 的下一剂量序号
//
// 取三个来源的最大值后加一：
//  1. 已持久化数据中该精确组合的最大序号
//  2. 本次运行内该精确组合已分配的最大序号
//  3. 本次运行内同主体同一天里药名包含本药名的其它条目的最大序号
//     （两条物理上不同、药名重叠的处方在去重展示时不会共用计数）
func (l *DosageLedger) Next(subject, day, drug string) int {
	max := l.persisted[subject+"|"+day+"|"+drug]
	for _, e := range l.entries {
		if e.subject == subject && e.day == day &&
			strings.Contains(e.drug, drug) && e.num > max {
			max = e.num
		}
	}

	num := max + 1
	l.entries = append(l.entries, dosageEntry{subject: subject, day: day, drug: drug, num: num})
	return num
}
