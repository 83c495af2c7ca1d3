package env

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mikeydub/go-rediscache/service/logger"
	"github.com/spf13/viper"
)

var validators = map[string][]string{}

var v = validator.New()

var validatorsMu = &sync.Mutex{}

func init() {
	v.RegisterValidation("required_for_env", RequiredForEnv)
}

// RegisterValidation attaches validator tags to an environment variable. The tags are
// checked against the variable's value every time it is read.
func RegisterValidation(name string, tags ...string) {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	validators[name] = dedupe(append(validators[name], tags...))
}

// Validate runs the registered tags for name against its current value.
func Validate(name string) error {
	validatorsMu.Lock()
	defer validatorsMu.Unlock()
	value := viper.Get(name)
	if value == nil {
		return nil
	}
	for _, tag := range validators[name] {
		if err := v.Var(value, tag); err != nil {
			return err
		}
	}
	return nil
}

func logInvalid(ctx context.Context, name string) {
	if err := Validate(name); err != nil {
		logger.For(ctx).Errorf("invalid env var: %s, err: %s", name, err.Error())
	}
}

func GetString(ctx context.Context, name string) string {
	logInvalid(ctx, name)
	return viper.GetString(name)
}

func GetInt(ctx context.Context, name string) int {
	logInvalid(ctx, name)
	return viper.GetInt(name)
}

func GetFloat64(ctx context.Context, name string) float64 {
	logInvalid(ctx, name)
	return viper.GetFloat64(name)
}

// LoadEnvFile merges settings from a dotenv or yaml file into the environment. A missing file is
// not an error when optional is true. Variables set in the process environment still win.
func LoadEnvFile(ctx context.Context, path string, optional bool) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && optional {
		logger.For(ctx).Debugf("no config file at %s, using environment only", path)
		return nil
	}

	logger.For(ctx).Infof("configuring environment with settings from %s", path)
	viper.SetConfigFile(path)
	if strings.HasSuffix(path, ".env") {
		viper.SetConfigType("env")
	}
	viper.AutomaticEnv()
	return viper.MergeInConfig()
}

// RequiredForEnv fails an empty value when ENV is one of the space separated environments in
// the tag's parameter, e.g. "required_for_env=production".
var RequiredForEnv validator.Func = func(fl validator.FieldLevel) bool {
	if fl.Field().String() != "" {
		return true
	}

	current := viper.GetString("ENV")
	for _, env := range strings.Fields(fl.Param()) {
		if env == current {
			return false
		}
	}
	return true
}

func dedupe(src []string) []string {
	result := src[:0]

	seen := make(map[string]bool)
	for _, x := range src {
		if !seen[x] {
			result = append(result, x)
			seen[x] = true
		}
	}
	return result
}
