package mapping

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bluer01/COPH/internal/models"
	"github.com/Bluer01/COPH/internal/ontology"
)

func terminalPrompter(input string) (*TerminalPrompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewTerminalPrompter(strings.NewReader(input), &out), &out
}

func TestSelectKeyFields(t *testing.T) {
	p, out := terminalPrompter("0, 2\n")

	selected, err := p.SelectKeyFields([]string{"HEART_RATE", "RAW_KIND", "STEPS"})
	require.NoError(t, err)
	assert.Equal(t, []string{"HEART_RATE", "STEPS"}, selected)
	assert.Contains(t, out.String(), "0: HEART_RATE")
	assert.Contains(t, out.String(), "2: STEPS")
}

func TestSelectKeyFields_InvalidNumber(t *testing.T) {
	p, _ := terminalPrompter("7\n")

	_, err := p.SelectKeyFields([]string{"HEART_RATE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid field number")
}

func TestChooseStrategy(t *testing.T) {
	cases := []struct {
		input string
		want  Strategy
	}{
		{"1\n", StrategyLocal},
		{"2\n", StrategyRemote},
		{"3\n", StrategyManual},
		{"\n", StrategyManual},
	}

	for _, tc := range cases {
		p, _ := terminalPrompter(tc.input)
		got, err := p.ChooseStrategy([]string{"STEPS"})
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestChooseTerm(t *testing.T) {
	candidates := []models.OntologyTerm{
		{IRI: "http://example.org/HR", Label: "heart rate"},
		{IRI: "http://example.org/Pulse", Label: "pulse"},
	}

	p, _ := terminalPrompter("1\n")
	choice, ok, err := p.ChooseTerm("HEART_RATE", candidates)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, choice)

	// 留空表示全部放弃
	p, _ = terminalPrompter("\n")
	_, ok, err = p.ChooseTerm("HEART_RATE", candidates)
	require.NoError(t, err)
	assert.False(t, ok)

	// 越界编号同样视为放弃
	p, _ = terminalPrompter("9\n")
	_, ok, err = p.ChooseTerm("HEART_RATE", candidates)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteOptions(t *testing.T) {
	p, _ := terminalPrompter("n\n2\n")
	opts, err := p.RemoteOptions("HEART_RATE")
	require.NoError(t, err)
	assert.False(t, opts.Exact)
	assert.Equal(t, ontology.QuerySynonym, opts.QueryFields)

	// 回车默认精确匹配 + label,synonym
	p, _ = terminalPrompter("\n\n")
	opts, err = p.RemoteOptions("HEART_RATE")
	require.NoError(t, err)
	assert.True(t, opts.Exact)
	assert.Equal(t, ontology.QueryBoth, opts.QueryFields)
}

func TestManualEntryAndConfirm(t *testing.T) {
	p, out := terminalPrompter("heart rate\nhttp://example.org/HR\ny\n")

	label, iri, err := p.ManualEntry("HEART_RATE")
	require.NoError(t, err)
	assert.Equal(t, "heart rate", label)
	assert.Equal(t, "http://example.org/HR", iri)

	confirmed, err := p.ConfirmManual("HEART_RATE", label, iri)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Contains(t, out.String(), "are these correct?")

	p, _ = terminalPrompter("no\n")
	confirmed, err = p.ConfirmManual("HEART_RATE", label, iri)
	require.NoError(t, err)
	assert.False(t, confirmed)
}
