package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/sgl-project/sft-agent/internal/sft-agent/dataset"
	"github.com/sgl-project/sft-agent/internal/sft-agent/evaluator"
	"github.com/sgl-project/sft-agent/internal/sft-agent/trainer"
	"github.com/sgl-project/sft-agent/pkg/ftruntime"
	"github.com/sgl-project/sft-agent/pkg/logging"
	"github.com/sgl-project/sft-agent/pkg/storage"
	testutils "github.com/sgl-project/sft-agent/pkg/testing"
)

const causalLMConfig = `{"model_type":"qwen2","architectures":["Qwen2ForCausalLM"]}`

type staticFetcher string

func (s staticFetcher) FetchConfig(context.Context, string) ([]byte, error) {
	return []byte(s), nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	fs      afero.Fs
	uploads map[string][]byte
}

func (p *recordingPublisher) Upload(_ context.Context, source string, target storage.ObjectURI) error {
	data, err := afero.ReadFile(p.fs, source)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads[target.Key()] = data
	return nil
}

// screeningCSV holds n questions whose answers the mock runtime knows.
func screeningCSV(n int) string {
	var b strings.Builder
	b.WriteString("question,answer\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "what is condition %d?,condition %d is treatable\n", i, i)
	}
	return b.String()
}

func answer(messages []testutils.MockMessage) string {
	question := messages[len(messages)-1].Content
	return strings.TrimSuffix(strings.TrimPrefix(question, "what is "), "?") + " is treatable"
}

var _ = Describe("Driver", func() {
	var (
		mfs      afero.Fs
		mock     *testutils.MockRuntime
		tmpDir   string
		stdout   *bytes.Buffer
		opts     []Option
		procOpts []dataset.Option
	)

	BeforeEach(func() {
		mfs = afero.NewMemMapFs()
		mock = testutils.NewMockRuntime(mfs)
		mock.Generate = answer
		DeferCleanup(mock.Server.Close)

		dir, cleanup, err := testutils.TempDir()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(cleanup)
		tmpDir = dir
		Expect(testutils.WriteFiles(tmpDir, map[string]string{
			"qa.csv": screeningCSV(10),
		})).To(Succeed())

		stdout = &bytes.Buffer{}
		opts = nil
		procOpts = nil
	})

	newConfig := func() *Config {
		logger := logging.NewTestLogger()

		rtConfig, err := ftruntime.NewConfig(
			ftruntime.WithEndpoint(mock.URL()),
			ftruntime.WithIntervals(time.Millisecond, time.Millisecond),
			ftruntime.WithAnotherLog(logger),
		)
		Expect(err).NotTo(HaveOccurred())
		rt, err := ftruntime.NewClient(rtConfig)
		Expect(err).NotTo(HaveOccurred())

		dsConfig, err := dataset.NewConfig(append([]dataset.Option{
			dataset.WithAnotherLog(logger),
			dataset.WithFs(mfs),
			dataset.WithSeed(7),
			func(c *dataset.Config) error {
				c.ScreeningPath = filepath.Join(tmpDir, "qa.csv")
				c.PartitionDirectory = "/prepared"
				return nil
			},
		}, procOpts...)...)
		Expect(err).NotTo(HaveOccurred())
		processor, err := dataset.NewProcessor(dsConfig)
		Expect(err).NotTo(HaveOccurred())

		trainerConfig, err := trainer.NewConfig(
			trainer.WithAnotherLog(logger),
			trainer.WithFs(mfs),
			trainer.WithRuntime(rt),
			trainer.WithModelConfigs(staticFetcher(causalLMConfig)),
			trainer.WithRunID("run-1"),
			func(c *trainer.Config) error {
				c.DataDirectory = "/data"
				c.ScratchDirectory = "/scratch"
				c.AdapterDirectory = "/adapter"
				c.MergedModelDirectory = "/merged"
				return nil
			},
		)
		Expect(err).NotTo(HaveOccurred())

		evalConfig, err := evaluator.NewConfig(
			evaluator.WithAnotherLog(logger),
			evaluator.WithRuntime(rt),
		)
		Expect(err).NotTo(HaveOccurred())

		config, err := NewConfig(append([]Option{
			WithAnotherLog(logger),
			WithFs(mfs),
			WithRuntime(rt),
			WithComponents(processor, trainerConfig, evalConfig),
			WithStdout(stdout),
			func(c *Config) error {
				c.Report.Path = "/out/evaluation_report.json"
				return nil
			},
		}, opts...)...)
		Expect(err).NotTo(HaveOccurred())
		return config
	}

	newDriver := func() *Driver {
		driver, err := NewDriver(newConfig())
		Expect(err).NotTo(HaveOccurred())
		return driver
	}

	It("rejects a publish target that is not an S3 URI", func() {
		config := newConfig()
		config.Publish.Enabled = true
		config.Publish.URI = "gs://bucket/runs"

		_, err := NewDriver(config)
		Expect(err).To(MatchError(ContainSubstring("publish.uri")))
	})

	Context("when every stage succeeds", func() {
		It("trains, merges, evaluates and reports", func() {
			textfile := filepath.Join(tmpDir, "sft.prom")
			opts = append(opts, func(c *Config) error {
				c.Metrics.Textfile = textfile
				return nil
			})

			report, err := newDriver().Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			var stages []string
			for _, s := range report.Stages {
				stages = append(stages, s.Name)
			}
			Expect(stages).To(Equal([]string{StagePrepare, StageTrain, StageMerge, StageEvaluate, StageReport}))
			Expect(report.Seed).To(Equal(uint64(7)))
			Expect(report.Partitions).To(Equal(PartitionSizes{Train: 8, Validation: 1, Test: 1}))
			Expect(report.MergedModel).To(Equal("/merged"))
			Expect(report.AdapterDirectory).To(Equal("/adapter"))
			Expect(report.TrainerMetrics).To(HaveKeyWithValue("eval_loss", 1.25))
			Expect(report.Evaluation).To(HaveKeyWithValue("f1", 1.0))
			Expect(report.Evaluation).To(HaveKey("rougeL"))
			Expect(report.Evaluation).To(HaveKey("bleu"))

			By("holding one model at a time and releasing all of them")
			var purposes []string
			for _, l := range mock.Loads() {
				purposes = append(purposes, l.Purpose)
			}
			Expect(purposes).To(Equal([]string{
				string(ftruntime.PurposeTraining),
				string(ftruntime.PurposeMerge),
				string(ftruntime.PurposeGeneration),
			}))
			Expect(mock.MaxResident()).To(Equal(1))
			Expect(mock.Resident()).To(BeZero())
			Expect(mock.Loads()[2].Model).To(Equal("/merged"))

			By("evaluating on the validation partition without the answer in the prompt")
			Expect(mock.Prompts()).To(HaveLen(1))
			Expect(mock.Prompts()[0]).To(HaveLen(2))

			By("writing the report")
			data, err := afero.ReadFile(mfs, "/out/evaluation_report.json")
			Expect(err).NotTo(HaveOccurred())
			var stored map[string]interface{}
			Expect(json.Unmarshal(data, &stored)).To(Succeed())
			Expect(stored).To(HaveKeyWithValue("run_id", "run-1"))
			Expect(stored).To(HaveKeyWithValue("merged_model", "/merged"))
			Expect(stdout.String()).To(ContainSubstring("METRIC"))
			Expect(stdout.String()).To(ContainSubstring("f1"))

			By("writing textfile metrics")
			metrics, err := os.ReadFile(textfile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(metrics)).To(ContainSubstring(`sft_agent_stage_duration_seconds_count{stage="train"} 1`))
			Expect(string(metrics)).To(ContainSubstring(`sft_agent_partition_records{partition="train"} 8`))
			Expect(string(metrics)).To(ContainSubstring(`sft_agent_evaluation_score{metric="f1"} 1`))
			Expect(string(metrics)).To(ContainSubstring("sft_agent_last_run_success 1"))

			Expect(mock.Terminated()).To(BeZero())
		})

		It("publishes the zipped merged model and the report", func() {
			publisher := &recordingPublisher{fs: mfs, uploads: map[string][]byte{}}
			opts = append(opts, WithPublisher(publisher), func(c *Config) error {
				c.Publish.Enabled = true
				c.Publish.URI = "s3://models/runs/"
				return nil
			})

			report, err := newDriver().Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Stages[len(report.Stages)-1].Name).To(Equal(StagePublish))

			Expect(publisher.uploads).To(HaveKey("runs/merged.zip"))
			Expect(publisher.uploads).To(HaveKey("runs/evaluation_report.json"))
			exists, err := afero.Exists(mfs, "/scratch/publish-run-1/merged.zip")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})

		It("terminates the runtime when asked to", func() {
			opts = append(opts, func(c *Config) error {
				c.TerminateRuntime = true
				return nil
			})

			_, err := newDriver().Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(mock.Terminated()).To(Equal(1))
		})
	})

	Context("when a stage fails", func() {
		It("stops before loading any model when the data is missing", func() {
			procOpts = append(procOpts, func(c *dataset.Config) error {
				c.ScreeningPath = filepath.Join(tmpDir, "missing.csv")
				return nil
			})

			report, err := newDriver().Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("prepare stage")))
			Expect(err).To(MatchError(fs.ErrNotExist))
			Expect(report.Stages).To(HaveLen(1))
			Expect(mock.Loads()).To(BeEmpty())
		})

		It("releases the training model when the runtime rejects the data", func() {
			mock.FineTuneStatusCode = 422
			mock.FineTuneMessage = "Data error: empty conversation"

			_, err := newDriver().Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("train stage")))
			Expect(err).To(MatchError(ftruntime.ErrDataRejected))
			Expect(mock.Loads()).To(HaveLen(1))
			Expect(mock.Resident()).To(BeZero())
		})

		It("releases the merge model when the merged artifact is invalid", func() {
			mock.MergeLeavesAdapter = true

			_, err := newDriver().Run(context.Background())
			Expect(err).To(MatchError(ContainSubstring("merge stage")))
			Expect(err).To(MatchError(trainer.ErrMergedArtifact))
			Expect(mock.Loads()).To(HaveLen(2))
			Expect(mock.Resident()).To(BeZero())
		})

		It("records the failure in the textfile metrics", func() {
			mock.Statuses = []string{"FAILED"}
			textfile := filepath.Join(tmpDir, "failed.prom")
			opts = append(opts, func(c *Config) error {
				c.Metrics.Textfile = textfile
				return nil
			})

			_, err := newDriver().Run(context.Background())
			Expect(err).To(MatchError(ftruntime.ErrRuntimeFailed))

			metrics, err := os.ReadFile(textfile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(metrics)).To(ContainSubstring(`sft_agent_stage_failures_total{stage="train"} 1`))
			Expect(string(metrics)).To(ContainSubstring("sft_agent_last_run_success 0"))
		})
	})
})

var _ = Describe("Config", func() {
	It("reads the root keys from viper", func() {
		v := viper.New()
		v.Set("report.path", "/tmp/report.json")
		v.Set("metrics.textfile", "/var/lib/node_exporter/sft.prom")
		v.Set("publish.enabled", true)
		v.Set("publish.uri", "s3://models/runs/")
		v.Set("publish.s3.region", "us-west-2")
		v.Set("terminate_runtime", true)

		config, err := NewConfig(WithViper(v))
		Expect(err).NotTo(HaveOccurred())
		Expect(config.Report.Path).To(Equal("/tmp/report.json"))
		Expect(config.Metrics.Textfile).To(Equal("/var/lib/node_exporter/sft.prom"))
		Expect(config.Publish.Enabled).To(BeTrue())
		Expect(config.Publish.URI).To(Equal("s3://models/runs/"))
		Expect(config.Publish.S3.Region).To(Equal("us-west-2"))
		Expect(config.TerminateRuntime).To(BeTrue())
	})

	It("defaults the report path", func() {
		config, err := NewConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(config.Report.Path).To(Equal("evaluation_report.json"))
	})
})
