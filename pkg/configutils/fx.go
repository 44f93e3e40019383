package configutils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// NewViper builds a viper instance reading configFilePath (with imports),
// overridable by <envPrefix>_<KEY> environment variables and the --debug flag.
func NewViper(envPrefix string, pflags *pflag.FlagSet, configFilePath string) (*viper.Viper, error) {
	if configFilePath == "" {
		return nil, errors.New("no config file provided")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if pflags != nil {
		if flag := pflags.Lookup("debug"); flag != nil {
			if err := v.BindPFlag("debug", flag); err != nil {
				return nil, fmt.Errorf("can't bind debug flag: %w", err)
			}
		}
	}

	if err := ResolveAndMergeFile(v, configFilePath); err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	// UnmarshalKey only sees values read from files; pin env overrides in.
	for _, key := range v.AllKeys() {
		v.Set(key, v.Get(key))
	}
	return v, nil
}

// ProvideViperFromFile provides *viper.Viper built by NewViper.
func ProvideViperFromFile(envPrefix string, pflags *pflag.FlagSet, configFilePath string) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		return NewViper(envPrefix, pflags, configFilePath)
	})
}
