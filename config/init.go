package config

import (
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

const defaultConfigPath = "config.yml"

// configPath honors BRIDGE_CONFIG so deployments can place the file
// wherever they like.
func configPath() string {
	if p := os.Getenv("BRIDGE_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func readFile(cfg *Configuration) {
	f, err := os.Open(configPath())
	if err != nil {
		logrus.WithError(err).Fatal("cannot open configuration file")
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		logrus.WithError(err).Fatal("cannot parse configuration file")
	}
}

func readEnv(cfg *Configuration) {
	if err := envconfig.Process("", cfg); err != nil {
		logrus.WithError(err).Fatal("cannot read configuration from environment")
	}
}

func Init() {
	readFile(&Config)
	readEnv(&Config)
}
