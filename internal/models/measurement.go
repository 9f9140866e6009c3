// Package models 定义监测数据导入服务的核心数据模型
//
// 包括：
// - Measurement / MeasurementGroup：设备记录归一化后的统一时序模型
// - Bucket：MongoDB 中的聚合存储单元（按容量上限分桶）
// - FieldMapping：字段名 → 本体语义标识（IRI）的映射
package models

import (
	"time"
)

// Record 原始记录（一行输入数据，扁平 key→value）
//
// 来源文件（CSV/JSON/XLSX）解析后所有值统一为字符串，
// 缺失字段视为单条记录转换失败，不中断整个导入流程。
type Record = map[string]string

// Measurement 单个测量值（某一时刻的一个观测）
type Measurement struct {
	// Name 指标标签（如 "HEART_RATE"、"NO2"、"ECG"）
	// 为空时分桶 type 取所属 MeasurementGroup 的 Type
	Name string `bson:"-"`

	Timestamp time.Time `bson:"timestamp"`
	Value     any       `bson:"value"`

	// RiskScore 下游分析写入的风险评分，导入阶段恒为空
	RiskScore *int `bson:"risk_score,omitempty"`
}

// MeasurementGroup 一条原始记录（或一个展开的子记录，如处方的一天）
// 归一化后的输出单元
type MeasurementGroup struct {
	UserID   string `bson:"user_id"`
	DeviceID string `bson:"device_id"`

	// Type 语义类别（如 "amazfit_bip"、chartevents 的 label、"prescriptions"）
	Type string `bson:"type"`

	// Period 设备声明的采样周期标签（设备级常量，如 "1/min"）
	Period string `bson:"period"`

	// Day 该组数据所属的日历日（UTC 零点）
	Day time.Time `bson:"day"`

	// ValueUOM 计量单位，可为空
	ValueUOM string `bson:"valueuom,omitempty"`

	Measurements []Measurement `bson:"measurements"`

	// Summaries 预留给下游消费者的衍生汇总，导入阶段不填充
	Summaries map[string]any `bson:"summaries,omitempty"`

	// Context 设备声明的上下文字段，合并进 bucket 过滤条件
	// （如 chartevents 的 user_id/valueuom、move_ecg 的佩戴位置）
	Context map[string]any `bson:"-"`
}

// Empty 判断该组是否为空（空组直接丢弃，不落库）
func (g *MeasurementGroup) Empty() bool {
	return len(g.Measurements) == 0
}

// FieldMapping 字段名对应的本体语义映射
type FieldMapping struct {
	Label string `bson:"label" json:"label"`
	IRI   string `bson:"iri" json:"iri"`
}

// OntologyTerm 本地本体库中的一个术语
type OntologyTerm struct {
	IRI     string
	Label   string
	Comment string
}

// DosageRecord 已持久化的处方剂量序号（从存储预加载）
// Subject 为处方 bucket 的主体编号（写入时的 user_id）
type DosageRecord struct {
	Subject string
	Day     string
	Drug    string
	Num     int
}
