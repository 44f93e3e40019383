package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"

	sftafero "github.com/sgl-project/sft-agent/pkg/afero"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/textmetrics"
)

// PartitionSizes counts the records of each partition.
type PartitionSizes struct {
	Train      int `json:"train"`
	Validation int `json:"validation"`
	Test       int `json:"test"`
}

// StageTiming is the wall time of one pipeline stage.
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"-"`
	Seconds  float64       `json:"seconds"`
}

// Report summarizes a pipeline run.
type Report struct {
	RunID            string             `json:"run_id"`
	BaseModel        string             `json:"base_model"`
	AdapterDirectory string             `json:"adapter_directory,omitempty"`
	MergedModel      string             `json:"merged_model,omitempty"`
	Seed             uint64             `json:"seed"`
	Partitions       PartitionSizes     `json:"partitions"`
	TrainingMetrics  json.RawMessage    `json:"training_metrics,omitempty"`
	TrainerMetrics   textmetrics.Report `json:"trainer_metrics,omitempty"`
	Evaluation       textmetrics.Report `json:"evaluation"`
	Stages           []StageTiming      `json:"stages"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
}

func (r *Report) addStage(name string, d time.Duration) {
	r.Stages = append(r.Stages, StageTiming{Name: name, Duration: d, Seconds: d.Seconds()})
}

// RenderTable prints the evaluation scores, one metric per row.
func (r *Report) RenderTable(w io.Writer) {
	data := make([][]string, 0, len(r.Evaluation))
	for _, name := range r.Evaluation.Keys() {
		data = append(data, []string{name, strconv.FormatFloat(r.Evaluation[name], 'f', 4, 64)})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"METRIC", "VALUE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// WriteJSON stores the report at path.
func (r *Report) WriteJSON(fs afero.Fs, path string, logger logging.Interface) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := sftafero.AtomicWriteFile(fs, path, append(data, '\n'), 0o644, logger); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
