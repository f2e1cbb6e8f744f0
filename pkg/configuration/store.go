package configuration

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

// Writer records settings discovered while provisioning. Set only changes the
// in-memory copy; Persist writes it back and returns the refreshed configuration.
type Writer interface {
	Set(section string, key string, value string)
	Persist() (Configuration, error)
}

// Store is the file backed configuration (dwh.cfg).
type Store struct {
	path    string
	file    *ini.File
	current Configuration
}

// Values are taken verbatim up to the end of the line, so credentials may
// contain '#' and ';'. Only whole-line comments are recognised.
func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{InsensitiveKeys: true, IgnoreInlineComment: true}
}

func Open(path string) (*Store, error) {
	file, err := ini.LoadSources(loadOptions(), path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration %s: %w", path, err)
	}

	store := &Store{path: path, file: file}
	if err := store.refresh(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}
	return store, nil
}

func (s *Store) Configuration() Configuration {
	return s.current
}

func (s *Store) Set(section string, key string, value string) {
	s.file.Section(section).Key(key).SetValue(value)
}

func (s *Store) Persist() (Configuration, error) {
	if err := s.file.SaveTo(s.path); err != nil {
		return s.current, fmt.Errorf("unable to write configuration %s: %w", s.path, err)
	}
	log.Debugf("configuration written to %s", s.path)

	if err := s.refresh(); err != nil {
		return s.current, err
	}
	return s.current, nil
}

func (s *Store) refresh() error {
	values := make(map[string]interface{})

	for _, section := range s.file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		for _, key := range section.Keys() {
			name := strings.ToLower(section.Name()) + "." + strings.ToLower(key.Name())
			values[name] = key.String()
		}
	}

	current, err := build(values)
	if err != nil {
		return err
	}
	s.current = current
	return nil
}
