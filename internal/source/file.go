// Package source 记录源：从文件读取扁平 key→value 记录序列
//
// 支持 CSV（首行为表头）、JSON（对象数组）和 XLSX（临床数据导出，
// 取第一个工作表，首行为表头）。所有值归一化为字符串。
package source

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Bluer01/COPH/internal/models"
)

// Parse 按扩展名解析文件为记录序列
func Parse(path string) ([]models.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(path)
	case ".json":
		return parseJSON(path)
	case ".xlsx":
		return parseXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(path))
	}
}

func parseCSV(path string) ([]models.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(models.Record, len(header))
		for i, key := range header {
			if i < len(row) {
				record[key] = row[i]
			} else {
				record[key] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}

func parseJSON(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read json file: %w", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse json file: %w", err)
	}

	records := make([]models.Record, 0, len(raw))
	for _, item := range raw {
		record := make(models.Record, len(item))
		for key, value := range item {
			record[key] = stringify(value)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseXLSX(path string) ([]models.Record, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read xlsx sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	records := make([]models.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record := make(models.Record, len(header))
		for i, key := range header {
			if i < len(row) {
				record[key] = row[i]
			} else {
				record[key] = ""
			}
		}
		records = append(records, record)
	}

	return records, nil
}

// stringify JSON 标量统一转字符串，与 CSV 读取结果保持一致
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		// 整数值不带小数点（JSON 数字统一解析为 float64）
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
