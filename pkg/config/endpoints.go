package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed endpoints.yaml
var defaultEndpoints []byte

// Endpoints is the URL template table plus the header pools used by the fetcher
type Endpoints struct {
	Host          string            `yaml:"host"`
	DiagnosticURL string            `yaml:"diagnostic_url"`
	Paths         map[string]string `yaml:"paths"`
	WarmupURLs    []string          `yaml:"warmup_urls"`
	UserAgents    []string          `yaml:"user_agents"`
}

// LoadEndpoints reads the endpoint table from path, or the embedded default when path is empty.
// ${VAR} references are expanded from the environment.
func LoadEndpoints(path string) (*Endpoints, error) {
	data := defaultEndpoints
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read endpoints file: %w", err)
		}
		data = raw
	}

	expanded := os.ExpandEnv(string(data))

	var ep Endpoints
	if err := yaml.Unmarshal([]byte(expanded), &ep); err != nil {
		return nil, fmt.Errorf("parse endpoints yaml: %w", err)
	}

	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("validate endpoints: %w", err)
	}

	return &ep, nil
}

// Validate checks the table has what the fetcher needs
func (e *Endpoints) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(e.Paths) == 0 {
		return fmt.Errorf("paths are required")
	}
	if len(e.WarmupURLs) == 0 {
		return fmt.Errorf("at least one warmup url is required")
	}
	if len(e.UserAgents) == 0 {
		return fmt.Errorf("at least one user agent is required")
	}
	return nil
}

// Names returns the configured endpoint names, sorted
func (e *Endpoints) Names() []string {
	names := make([]string, 0, len(e.Paths))
	for name := range e.Paths {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// URL renders the named template. Params must already be percent-encoded.
func (e *Endpoints) URL(name string, params map[string]string) (string, error) {
	tmpl, ok := e.Paths[name]
	if !ok {
		return "", fmt.Errorf("unknown endpoint %q", name)
	}

	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	rendered := strings.NewReplacer(pairs...).Replace(tmpl)

	if strings.Contains(rendered, "{") && strings.Contains(rendered, "}") {
		return "", fmt.Errorf("endpoint %q: unfilled placeholder in %q", name, rendered)
	}

	if strings.HasPrefix(rendered, "http://") || strings.HasPrefix(rendered, "https://") {
		return rendered, nil
	}
	return strings.TrimRight(e.Host, "/") + rendered, nil
}
