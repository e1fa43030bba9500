package app

import (
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ORIGYN-SA/mintgo/identity"
	"github.com/ORIGYN-SA/mintgo/stage"
)

const defaultConfig = `# mintgo

################################## LOGGING ####################################

[logging]

#
# Logging verbosity level.
# Supported values: "DEBUG", "INFO", "WARN", "ERROR", "FATAL" or "PANIC".
#
level = "WARN"

################################## CANISTER ###################################

[canister]

#
# Identifier of the NFT canister. Stage configuration documents carry their
# own and take precedence.
#
id = ""

#
# Where resource URLs point: "local" or "production".
#
environment = "local"

#
# Address of the canister gateway. When empty it is derived from the
# environment.
#
host = ""

#
# Serve local assets through the buffering proxy, needed for video playback.
#
use_proxy = true

#
# Principal the calls are made on behalf of. Empty means anonymous, which is
# enough for queries but not for staging, minting or market operations.
#
principal = ""

timeout = "60s"

################################## METRICS ####################################

[metrics]

#
# Listen address of the Prometheus endpoint exposed while staging, e.g.
# ":9100". Empty disables it.
#
addr = ""

################################## JOURNAL ####################################

[journal]

#
# Name of the DynamoDB table where staging runs are recorded. Empty disables
# the record.
#
table = ""

#
# AWS SNS topic ARN where staging runs are announced. Empty disables it.
#
topic = ""

################################## AWS ########################################

[aws]

s3_profile = ""
s3_endpoint = ""

dynamodb_profile = ""
dynamodb_endpoint = ""

sns_profile = ""
sns_endpoint = ""
`

const (
	localHost      = "http://127.0.0.1:8000"
	productionHost = "https://icp-api.io"
)

type Config struct {
	v *viper.Viper

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Canister struct {
		ID          string        `mapstructure:"id"`
		Environment string        `mapstructure:"environment"`
		Host        string        `mapstructure:"host"`
		UseProxy    bool          `mapstructure:"use_proxy"`
		Principal   string        `mapstructure:"principal"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"canister"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Journal struct {
		Table string `mapstructure:"table"`
		Topic string `mapstructure:"topic"`
	} `mapstructure:"journal"`

	AWS struct {
		S3Profile        string `mapstructure:"s3_profile"`
		S3Endpoint       string `mapstructure:"s3_endpoint"`
		DynamoDBProfile  string `mapstructure:"dynamodb_profile"`
		DynamoDBEndpoint string `mapstructure:"dynamodb_endpoint"`
		SNSProfile       string `mapstructure:"sns_profile"`
		SNSEndpoint      string `mapstructure:"sns_endpoint"`
	} `mapstructure:"aws"`
}

func (c Config) Validate() error {
	if _, err := stage.ParseEnvironment(c.Canister.Environment); err != nil {
		return err
	}
	if c.Canister.Principal != "" {
		if err := identity.ValidatePrincipal(strings.ToLower(strings.TrimSpace(c.Canister.Principal))); err != nil {
			return errors.Wrap(err, "canister.principal")
		}
	}
	if c.Canister.Timeout < 0 {
		return errors.New("canister.timeout is negative")
	}
	return nil
}

// Environment returns the parsed canister environment.
func (c Config) Environment() stage.Environment {
	env, _ := stage.ParseEnvironment(c.Canister.Environment)
	return env
}

// Host returns the gateway address.
func (c Config) Host() string {
	if c.Canister.Host != "" {
		return c.Canister.Host
	}
	if c.Environment() == stage.EnvProduction {
		return productionHost
	}
	return localHost
}

func (c Config) String() string {
	tmpfile, err := ioutil.TempFile("", "config.*.toml")
	if err != nil {
		return err.Error()
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()
	err = c.v.WriteConfigAs(tmpfile.Name())
	if err != nil {
		return err.Error()
	}
	blob, err := ioutil.ReadAll(tmpfile)
	if err != nil {
		return err.Error()
	}
	return string(blob)
}

func loadConfig(c *Config) error {
	v := viper.New()

	v.SetEnvPrefix("MINTGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mintgo")
	v.SetConfigType("toml")
	v.AddConfigPath("$HOME/.config/")
	v.AddConfigPath("/etc/mintgo/")

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read our default configuration.
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		panic(err) // Not in the user path.
	}

	// Include configuration file provided by the user.
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return errors.Wrap(err, "configuration unmarshaling failed")
	}

	if err := c.Validate(); err != nil {
		return errors.Wrap(err, "config did not pass validation")
	}

	c.v = v

	return nil
}
