package alerting

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ruleSpec is the on-disk YAML shape of one alert rule.
type ruleSpec struct {
	Name            string            `yaml:"name"`
	Metric          string            `yaml:"metric"`
	Condition       string            `yaml:"condition"`
	Threshold       float64           `yaml:"threshold"`
	Severity        string            `yaml:"severity"`
	DurationSeconds int               `yaml:"duration_seconds"`
	Description     string            `yaml:"description"`
	Enabled         *bool             `yaml:"enabled"`
	Tags            map[string]string `yaml:"tags"`
}

type ruleFile struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadRules reads and validates alert rules from a YAML file. Malformed rules
// are rejected here so evaluation never sees an invalid rule.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	rules := make([]Rule, 0, len(file.Rules))
	seen := make(map[string]struct{}, len(file.Rules))
	for i, spec := range file.Rules {
		rule, err := compileRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, spec.Name, err)
		}
		if _, dup := seen[rule.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name %q", rule.Name)
		}
		seen[rule.Name] = struct{}{}
		rules = append(rules, rule)
	}
	return rules, nil
}

// compileRule validates one rule spec and fills defaults.
func compileRule(spec ruleSpec) (Rule, error) {
	if spec.Name == "" {
		return Rule{}, fmt.Errorf("rule name is required")
	}
	if spec.Metric == "" {
		return Rule{}, fmt.Errorf("metric name is required")
	}
	op, err := ParseOperator(spec.Condition)
	if err != nil {
		return Rule{}, err
	}
	severity, err := ParseSeverity(spec.Severity)
	if err != nil {
		return Rule{}, err
	}
	if spec.DurationSeconds < 0 {
		return Rule{}, fmt.Errorf("duration_seconds must not be negative")
	}

	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}

	return Rule{
		Name:        spec.Name,
		MetricName:  spec.Metric,
		Condition:   op,
		Threshold:   spec.Threshold,
		Severity:    severity,
		Duration:    time.Duration(spec.DurationSeconds) * time.Second,
		Description: spec.Description,
		Enabled:     enabled,
		Tags:        spec.Tags,
	}, nil
}

// DefaultRules returns the built-in ruleset used when no rules file is
// configured. Thresholds match the self-collected system metrics.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "high_cpu_usage",
			MetricName:  "cpu_usage_percent",
			Condition:   OpGreaterThan,
			Threshold:   80,
			Severity:    SeverityHigh,
			Duration:    5 * time.Minute,
			Description: "CPU usage above 80%",
			Enabled:     true,
		},
		{
			Name:        "high_memory_usage",
			MetricName:  "memory_usage_percent",
			Condition:   OpGreaterThan,
			Threshold:   85,
			Severity:    SeverityHigh,
			Duration:    5 * time.Minute,
			Description: "Memory usage above 85%",
			Enabled:     true,
		},
		{
			Name:        "disk_almost_full",
			MetricName:  "disk_usage_percent",
			Condition:   OpGreaterThan,
			Threshold:   90,
			Severity:    SeverityCritical,
			Duration:    10 * time.Minute,
			Description: "Disk usage above 90%",
			Enabled:     true,
		},
	}
}
