package mapping

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Bluer01/COPH/internal/models"
	"github.com/Bluer01/COPH/internal/ontology"
)

// TerminalPrompter 交互终端应答器
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter 创建终端应答器
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

func (p *TerminalPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// SelectKeyFields 列出可用字段并让操作者按编号挑选
func (p *TerminalPrompter) SelectKeyFields(fields []string) ([]string, error) {
	fmt.Fprintln(p.out, "\nFields found in data:")
	for i, field := range fields {
		fmt.Fprintf(p.out, "%d: %s\n", i, field)
	}
	fmt.Fprint(p.out, "\nChoose the field number(s) to map, separated by comma: ")

	line, err := p.readLine()
	if err != nil {
		return nil, err
	}

	var selected []string
	for _, part := range strings.Split(line, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n >= len(fields) {
			return nil, fmt.Errorf("invalid field number: %q", part)
		}
		selected = append(selected, fields[n])
	}
	return selected, nil
}

// ChooseStrategy 选择解析策略
func (p *TerminalPrompter) ChooseStrategy(unmapped []string) (Strategy, error) {
	fmt.Fprintln(p.out, "\nThe following fields have no mapping yet:")
	for _, field := range unmapped {
		fmt.Fprintln(p.out, field)
	}
	fmt.Fprint(p.out, "\nPlease choose your preferred solution:\n"+
		"   1) Search the local ontology for suitable terms\n"+
		"   2) Search OLS (Ontology Lookup Service) for suitable terms\n"+
		"   3) Provide your own term options\n"+
		"Option: ")

	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	switch line {
	case "1":
		return StrategyLocal, nil
	case "2":
		return StrategyRemote, nil
	default:
		return StrategyManual, nil
	}
}

// RefineQuery 字段级检索词；回车留空表示直接用字段名
func (p *TerminalPrompter) RefineQuery(field string) (string, error) {
	fmt.Fprintf(p.out, "\nField: %s\n", field)
	fmt.Fprint(p.out, "Type an alternative term to search for, or leave blank to use the field name: ")
	return p.readLine()
}

// ChooseTerm 展示本地候选供选择；留空表示全部放弃
func (p *TerminalPrompter) ChooseTerm(field string, candidates []models.OntologyTerm) (int, bool, error) {
	fmt.Fprintf(p.out, "\nResulting option(s) for %q:\n", field)
	for i, term := range candidates {
		fmt.Fprintf(p.out, "%d) %s: %s\n", i, term.Label, term.IRI)
	}
	fmt.Fprint(p.out, "Please type the number of the chosen response (empty implies none): ")

	line, err := p.readLine()
	if err != nil {
		return 0, false, err
	}
	if line == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 || n >= len(candidates) {
		return 0, false, nil
	}
	return n, true, nil
}

// RemoteOptions 远程检索选项
func (p *TerminalPrompter) RemoteOptions(field string) (ontology.SearchOptions, error) {
	opts := ontology.SearchOptions{}

	fmt.Fprint(p.out, "\nWould you like to filter to exact matches? [Y/n] ")
	line, err := p.readLine()
	if err != nil {
		return opts, err
	}
	opts.Exact = !isNo(line)

	fmt.Fprint(p.out, "\nWhat would you like to query on?\n"+
		"  1) Label\n  2) Synonym\n  3) Both\nOption: ")
	line, err = p.readLine()
	if err != nil {
		return opts, err
	}
	switch line {
	case "1":
		opts.QueryFields = ontology.QueryLabel
	case "2":
		opts.QueryFields = ontology.QuerySynonym
	default:
		opts.QueryFields = ontology.QueryBoth
	}
	return opts, nil
}

// ChooseResult 展示远程候选供选择；留空表示全部放弃
func (p *TerminalPrompter) ChooseResult(field string, results []ontology.Result) (int, bool, error) {
	fmt.Fprintf(p.out, "\nHere are the first %d results:\n", len(results))
	for i, result := range results {
		fmt.Fprintf(p.out, "%d) IRI: %s\n   label: %s\n   ontology: %s\n   description: %v\n\n",
			i, result.IRI, result.Label, result.OntologyName, result.Description)
	}
	fmt.Fprint(p.out, "Please choose the number of the result you wish to use (leave blank for none): ")

	line, err := p.readLine()
	if err != nil {
		return 0, false, err
	}
	if line == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 0 || n >= len(results) {
		return 0, false, nil
	}
	return n, true, nil
}

// ManualEntry 人工录入 label 与 IRI
func (p *TerminalPrompter) ManualEntry(field string) (string, string, error) {
	fmt.Fprintf(p.out, "Please type the label to use for %s: ", field)
	label, err := p.readLine()
	if err != nil {
		return "", "", err
	}

	fmt.Fprintf(p.out, "Please type the iri to match with %s for %s: ", label, field)
	iri, err := p.readLine()
	if err != nil {
		return "", "", err
	}
	return label, iri, nil
}

// ConfirmManual 确认人工录入；回答 n/no 触发重新录入
func (p *TerminalPrompter) ConfirmManual(field, label, iri string) (bool, error) {
	fmt.Fprintf(p.out, "%s: %s; are these correct? (Y/n) ", label, iri)
	line, err := p.readLine()
	if err != nil {
		return false, err
	}
	return !isNo(line), nil
}

func isNo(answer string) bool {
	switch strings.ToLower(answer) {
	case "n", "no":
		return true
	default:
		return false
	}
}
