package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/runner"
	"gopkg.in/yaml.v3"
)

// RunFile describes a run: a trace and the caches to run it through.
type RunFile struct {
	Trace          string                      `yaml:"trace"`
	InvalidAddress runner.InvalidAddressPolicy `yaml:"invalid_address,omitempty"`
	Caches         []CacheSpec                 `yaml:"caches"`
}

// CacheSpec is one cache of a run file.
type CacheSpec struct {
	Name         string `yaml:"name"`
	cache.Config `yaml:",inline"`
}

// LoadRunFile reads a run file. Unknown keys are errors.
func LoadRunFile(path string) (RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunFile{}, fmt.Errorf("reading run file: %w", err)
	}

	return ParseRunFile(data)
}

// ParseRunFile decodes and validates a run file.
func ParseRunFile(data []byte) (RunFile, error) {
	var rf RunFile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	err := decoder.Decode(&rf)
	if err != nil && !errors.Is(err, io.EOF) {
		return RunFile{}, fmt.Errorf("parsing run file: %w", err)
	}

	if err := rf.Validate(); err != nil {
		return RunFile{}, err
	}

	return rf, nil
}

// Validate checks the policy and gives every cache a unique name. Cache
// geometry is checked when the caches are built.
func (rf *RunFile) Validate() error {
	if err := rf.InvalidAddress.Validate(); err != nil {
		return fmt.Errorf("run file: %w", err)
	}

	if len(rf.Caches) == 0 {
		return fmt.Errorf("run file: %w: no caches", cache.ErrConfiguration)
	}

	seen := make(map[string]bool)

	for i := range rf.Caches {
		c := &rf.Caches[i]
		if c.Name == "" {
			c.Name = defaultCacheName(c.Organization, i)
		}

		if seen[c.Name] {
			return fmt.Errorf("run file: %w: cache name %q used twice",
				cache.ErrConfiguration, c.Name)
		}

		seen[c.Name] = true
	}

	return nil
}

func defaultCacheName(org cache.Organization, i int) string {
	return fmt.Sprintf("%s-%d", org, i)
}
