package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinythings/alfad/internal/config"
)

func readTaskFile(path string) (config.TaskFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config.TaskFile{}, err
	}
	var tf config.TaskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return config.TaskFile{}, err
	}
	return tf, nil
}
