package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/always-cache/offline-worker/notify"
	"github.com/always-cache/offline-worker/pkg/classifier"
)

type Config struct {
	Origin        string            `yaml:"origin"`
	Host          string            `yaml:"host"`
	AppOrigin     string            `yaml:"appOrigin"`
	Version       string            `yaml:"version"`
	Precache      []string          `yaml:"precache"`
	Rules         classifier.Rules  `yaml:"rules"`
	Notifications notify.Descriptor `yaml:"notifications"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}
