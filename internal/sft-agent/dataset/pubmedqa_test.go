package dataset

import (
	"io/fs"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgl-project/sft-agent/pkg/logging"
)

func memPubMedQA(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	mfs := afero.NewMemMapFs()
	for name, body := range files {
		require.NoError(t, afero.WriteFile(mfs, "/files/"+name, []byte(body), 0o644))
	}
	return mfs
}

func TestRetrievePubMedQARecords(t *testing.T) {
	mfs := memPubMedQA(t, map[string]string{
		"ori_pqal.json": `{
			"101": {"QUESTION": "Does aspirin help?", "LONG_ANSWER": "Sometimes.", "CONTEXTS": ["a"]},
			"102": {"QUESTION": "Is sleep needed?", "LONG_ANSWER": "Yes."}
		}`,
		"ori_pqaa.json": `{
			"201": {"QUESTION": "Can zinc shorten colds?", "LONG_ANSWER": "Possibly."},
			"101": {"QUESTION": "Does aspirin help adults?", "LONG_ANSWER": "In some trials."}
		}`,
		"ori_pqau.json": `{
			"301": {"QUESTION": "Unlabelled question?", "LONG_ANSWER": ""},
			"302": {"QUESTION": "Is water wet?", "LONG_ANSWER": "It makes things wet."}
		}`,
	})

	records, err := NewPubMedQARetriever(mfs, "/files", nil, logging.NewTestLogger()).RetrievePubMedQARecords()
	require.NoError(t, err)

	assert.Equal(t, RecordSet{
		{Question: "Does aspirin help adults?", Answer: "In some trials."},
		{Question: "Is sleep needed?", Answer: "Yes."},
		{Question: "Can zinc shorten colds?", Answer: "Possibly."},
		{Question: "Is water wet?", Answer: "It makes things wet."},
	}, records)
}

func TestRetrievePubMedQARecords_MissingFile(t *testing.T) {
	mfs := memPubMedQA(t, map[string]string{
		"ori_pqal.json": `{}`,
		"ori_pqaa.json": `{}`,
	})

	_, err := NewPubMedQARetriever(mfs, "/files", nil, logging.Discard()).RetrievePubMedQARecords()
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRetrievePubMedQARecords_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"array":     `[{"QUESTION": "q", "LONG_ANSWER": "a"}]`,
		"truncated": `{"1": {"QUESTION": "q"`,
		"trailing":  `{"1": {"QUESTION": "q", "LONG_ANSWER": "a"}} {}`,
	} {
		t.Run(name, func(t *testing.T) {
			mfs := memPubMedQA(t, map[string]string{"only.json": body})
			_, err := NewPubMedQARetriever(mfs, "/files", []string{"only.json"}, logging.Discard()).RetrievePubMedQARecords()
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}
