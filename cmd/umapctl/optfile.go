package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/umapgo"
	"gopkg.in/yaml.v3"
)

// setter is implemented by umapgo.KNNOptions and umapgo.UMAPOptions.
type setter interface {
	SetNumber(key string, value float64) error
	SetString(key, value string) error
}

var (
	_ setter = (*umapgo.KNNOptions)(nil)
	_ setter = (*umapgo.UMAPOptions)(nil)
)

// optionSet is a collection of string-keyed options as read from an options
// file and --set flags. Keys are canonicalized on insert.
type optionSet struct {
	Numbers map[string]float64
	Strings map[string]string
}

func newOptionSet() *optionSet {
	return &optionSet{
		Numbers: make(map[string]float64),
		Strings: make(map[string]string),
	}
}

func (s *optionSet) setNumber(key string, v float64) {
	key = umapgo.CanonicalKey(key)
	delete(s.Strings, key)
	s.Numbers[key] = v
}

func (s *optionSet) setString(key, v string) {
	key = umapgo.CanonicalKey(key)
	delete(s.Numbers, key)
	s.Strings[key] = v
}

// loadOptionFile reads a YAML mapping of option keys to scalar values.
//
//	metric: cosine
//	n_neighbors: 15
//	min_dist: 0.1
func (s *optionSet) loadOptionFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return wrapf(err, CodeConfigLoadReadFailure, "reading options file %s", path)
	}

	return s.parseOptionFile(raw)
}

func (s *optionSet) parseOptionFile(raw []byte) error {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return wrapf(err, CodeConfigParseInvalidFormat, "parsing options file")
	}

	for key, node := range doc {
		if node.Kind != yaml.ScalarNode {
			return errorf(CodeConfigParseInvalidFormat, "option %q: expected a scalar value", key)
		}

		switch node.ShortTag() {
		case "!!int", "!!float":
			var v float64
			if err := node.Decode(&v); err != nil {
				return wrapf(err, CodeConfigParseInvalidFormat, "option %q", key)
			}
			s.setNumber(key, v)
		case "!!str":
			s.setString(key, node.Value)
		default:
			return errorf(CodeConfigParseInvalidFormat, "option %q: unsupported value %q", key, node.Value)
		}
	}

	return nil
}

// parseAssignments applies key=value pairs. Values that parse as numbers are
// numeric options, everything else is a string option.
func (s *optionSet) parseAssignments(pairs []string) error {
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return errorf(CodeCLIInputInvalid, "--set %q: expected key=value", pair)
		}

		if v, err := strconv.ParseFloat(value, 64); err == nil {
			s.setNumber(key, v)
			continue
		}

		s.setString(key, value)
	}

	return nil
}

// apply hands every option to dst. Strings go first so that a method or
// metric change never resets a number set afterwards.
func (s *optionSet) apply(dst setter) error {
	for _, k := range sortedKeys(s.Strings) {
		if err := dst.SetString(k, s.Strings[k]); err != nil {
			return wrapf(err, CodeConfigValidateInvalidValue, "option %s", k)
		}
	}

	for _, k := range sortedKeys(s.Numbers) {
		if err := dst.SetNumber(k, s.Numbers[k]); err != nil {
			return wrapf(err, CodeConfigValidateInvalidValue, "option %s", k)
		}
	}

	return nil
}

func (s *optionSet) String() string {
	parts := make([]string, 0, len(s.Numbers)+len(s.Strings))
	for _, k := range sortedKeys(s.Strings) {
		parts = append(parts, k+"="+s.Strings[k])
	}

	for _, k := range sortedKeys(s.Numbers) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, s.Numbers[k]))
	}

	return strings.Join(parts, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
