package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of the verifier CLI's optional
// --config file; it only overrides the tolerances verify.Config exposes.
type fileConfig struct {
	SchemaDir                     string `yaml:"schema_dir"`
	IgnoreIncorrectPictureMxfType bool   `yaml:"ignore_incorrect_picture_mxf_type"`
	ProgressPollInterval          int    `yaml:"progress_poll_interval"`
	DigestBufferSize              int    `yaml:"digest_buffer_size"`
	PictureFrameRate              int    `yaml:"picture_frame_rate"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
