package configutils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutils "github.com/sgl-project/sft-agent/pkg/testing"
)

const (
	pipelineConfig = `imports:
  - trainer.yaml

trainer:
  base_model: Qwen/Qwen2.5-0.5B
split:
  seed: 42
`
	trainerConfig = `imports:
  - defaults.yaml
  -

trainer:
  max_length: 512
`
	defaultsConfig = `
trainer:
  base_model: some/other-model
  adapter_directory: adapter/
`
)

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, closer, err := testutils.TempDir()
	require.NoError(t, err)
	t.Cleanup(closer)

	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func TestResolveAndMergeFile(t *testing.T) {
	t.Run("imports are merged beneath the importing file", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{
			"pipeline.yaml": pipelineConfig,
			"trainer.yaml":  trainerConfig,
			"defaults.yaml": defaultsConfig,
		})

		v := viper.New()
		require.NoError(t, ResolveAndMergeFile(v, filepath.Join(dir, "pipeline.yaml")))

		assert.Equal(t, "Qwen/Qwen2.5-0.5B", v.GetString("trainer.base_model"))
		assert.Equal(t, 512, v.GetInt("trainer.max_length"))
		assert.Equal(t, "adapter/", v.GetString("trainer.adapter_directory"))
		assert.Equal(t, 42, v.GetInt("split.seed"))
	})

	t.Run("missing import", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{
			"pipeline.yaml": pipelineConfig,
			"trainer.yaml":  trainerConfig,
		})

		err := ResolveAndMergeFile(viper.New(), filepath.Join(dir, "pipeline.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed import", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{
			"pipeline.yaml": pipelineConfig,
			"trainer.yaml":  "trainer: [unterminated",
		})

		err := ResolveAndMergeFile(viper.New(), filepath.Join(dir, "pipeline.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not resolve configuration imports")
	})

	t.Run("import cycle terminates", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{
			"a.yaml": "imports: [b.yaml]\nx: 1\n",
			"b.yaml": "imports: [a.yaml]\ny: 2\n",
		})

		v := viper.New()
		require.NoError(t, ResolveAndMergeFile(v, filepath.Join(dir, "a.yaml")))
		assert.Equal(t, 1, v.GetInt("x"))
		assert.Equal(t, 2, v.GetInt("y"))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{"config.conf": "x = 1"})
		err := ResolveAndMergeFile(viper.New(), filepath.Join(dir, "config.conf"))
		assert.ErrorContains(t, err, "unsupported configuration file extension")
	})

	t.Run("no extension", func(t *testing.T) {
		dir := writeConfigs(t, map[string]string{"config": "x: 1"})
		err := ResolveAndMergeFile(viper.New(), filepath.Join(dir, "config"))
		assert.ErrorContains(t, err, "no extension")
	})
}

type nestedConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URI     string `mapstructure:"uri"`
}

type bindTarget struct {
	Name    string        `mapstructure:"name"`
	Nested  nestedConfig  `mapstructure:"nested"`
	Pointer *nestedConfig `mapstructure:"pointer"`
	Ignored string
}

func TestBindEnvsRecursive(t *testing.T) {
	t.Setenv("SFTTEST_NAME", "agent")
	t.Setenv("SFTTEST_NESTED_URI", "s3://bucket/prefix")
	t.Setenv("SFTTEST_POINTER_ENABLED", "true")

	v := viper.New()
	v.SetEnvPrefix("SFTTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	target := &bindTarget{}
	require.NoError(t, BindEnvsRecursive(v, target, ""))
	require.NoError(t, v.Unmarshal(target))

	assert.Equal(t, "agent", target.Name)
	assert.Equal(t, "s3://bucket/prefix", target.Nested.URI)
	require.NotNil(t, target.Pointer)
	assert.True(t, target.Pointer.Enabled)
}

func TestNewViper(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"agent.yaml": "trainer:\n  max_length: 256\n"})
	t.Setenv("SFT_AGENT_TRAINER_MAX_LENGTH", "1024")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--debug"}))

	v, err := NewViper("SFT_AGENT", flags, filepath.Join(dir, "agent.yaml"))
	require.NoError(t, err)

	assert.True(t, v.GetBool("debug"))

	var trainer struct {
		MaxLength int `mapstructure:"max_length"`
	}
	require.NoError(t, v.UnmarshalKey("trainer", &trainer))
	assert.Equal(t, 1024, trainer.MaxLength)

	_, err = NewViper("SFT_AGENT", nil, "")
	assert.Error(t, err)
}
