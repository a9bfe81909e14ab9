package spec

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider resolves table definitions by name.
type Provider interface {
	// Name identifies the data source.
	Name() string

	// Table returns the validated definition of a table.
	Table(name string) (*TableSpec, bool)

	// TableNames lists all tables, sorted.
	TableNames() []string
}

// Source is a named set of tables, usually parsed from YAML.
type Source struct {
	name   string
	tables map[string]*TableSpec
}

// NewSource builds a Source from already constructed tables. Every table is
// validated.
func NewSource(name string, tables ...*TableSpec) (*Source, error) {
	s := &Source{
		name:   name,
		tables: make(map[string]*TableSpec, len(tables)),
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.tables[t.Name]; dup {
			return nil, configErr(t.Name, "name", "duplicate table")
		}
		s.tables[t.Name] = t
	}
	return s, nil
}

// Name implements Provider.
func (s *Source) Name() string { return s.name }

// Table implements Provider.
func (s *Source) Table(name string) (*TableSpec, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// TableNames implements Provider.
func (s *Source) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// sourceFile is the YAML layout of a source definition.
type sourceFile struct {
	Name    string               `yaml:"name"`
	Request sourceRequest        `yaml:"request"`
	Tables  map[string]tableFile `yaml:"tables"`
}

type sourceRequest struct {
	Pagination *PaginationConfig `yaml:"pagination"`
	Headers    Fields            `yaml:"headers"`
}

type tableFile struct {
	Request  tableRequest `yaml:"request"`
	Response ResponseSpec `yaml:"response"`
}

type tableRequest struct {
	URL           string            `yaml:"url"`
	Method        string            `yaml:"method"`
	Authorization *AuthSpec         `yaml:"authorization"`
	Headers       Fields            `yaml:"headers"`
	Params        Fields            `yaml:"params"`
	Cookies       Fields            `yaml:"cookies"`
	Body          *bodyFile         `yaml:"body"`
	Pagination    *PaginationConfig `yaml:"pagination"`
}

type bodyFile struct {
	ContentType ContentType `yaml:"ctype"`
	Content     Fields      `yaml:"content"`
}

// LoadSource reads and parses the source definition at path.
func LoadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	return ParseSource(data)
}

// ParseSource parses a YAML source definition. ${VAR} and ${VAR:-default}
// references are expanded from the environment first. Source-level
// pagination and headers apply to every table that does not override them.
func ParseSource(data []byte) (*Source, error) {
	var file sourceFile
	if err := yaml.Unmarshal([]byte(expandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}

	if file.Name == "" {
		return nil, configErr("", "name", "source name is required")
	}
	if len(file.Tables) == 0 {
		return nil, configErr("", "tables", "source %q declares no tables", file.Name)
	}

	tables := make([]*TableSpec, 0, len(file.Tables))
	for name, tf := range file.Tables {
		tables = append(tables, tf.toSpec(name, file.Request))
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	return NewSource(file.Name, tables...)
}

func (tf tableFile) toSpec(name string, defaults sourceRequest) *TableSpec {
	t := &TableSpec{
		Name:          name,
		Method:        strings.ToUpper(tf.Request.method()),
		URL:           tf.Request.URL,
		Headers:       mergeFields(defaults.Headers, tf.Request.Headers),
		Params:        tf.Request.Params,
		Cookies:       tf.Request.Cookies,
		Authorization: tf.Request.Authorization,
		Response:      tf.Response,
	}

	if tf.Request.Body != nil {
		t.Body = tf.Request.Body.Content
		t.BodyContentType = tf.Request.Body.ContentType
		if t.Body == nil {
			t.Body = Fields{}
		}
	}

	switch {
	case tf.Request.Pagination != nil:
		t.Pagination = *tf.Request.Pagination
	case defaults.Pagination != nil:
		t.Pagination = *defaults.Pagination
	}
	if t.Pagination.Strategy == "" {
		t.Pagination.Strategy = StrategyNone
	}

	return t
}

// method returns the declared method, GET when absent.
func (r tableRequest) method() string {
	if r.Method == "" {
		return "GET"
	}
	return r.Method
}

// mergeFields overlays table fields on source defaults. Nil when both are nil.
func mergeFields(base, overlay Fields) Fields {
	if base == nil && overlay == nil {
		return nil
	}
	merged := make(Fields, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnv(content string) string {
	return envRef.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]

		def := ""
		if idx := strings.Index(name, ":-"); idx != -1 {
			def = name[idx+2:]
			name = name[:idx]
		}

		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	})
}
