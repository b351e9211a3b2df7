package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "scentstock.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	require.Len(t, spec.Groups, 1)
	group := spec.Groups[0]
	require.Equal(t, "scentstock", group.Name)

	expected := map[string]string{
		"HighErrorRate":       "critical",
		"CascadeLineFailures": "warning",
		"LowStockProducts":    "info",
		"JobFailures":         "warning",
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		severity, ok := expected[rule.Alert]
		require.Truef(t, ok, "unexpected rule %q", rule.Alert)
		require.Equalf(t, severity, rule.Labels["severity"], "rule %s severity", rule.Alert)
		require.NotEmptyf(t, rule.Annotations["summary"], "rule %s summary", rule.Alert)
		require.NotEmptyf(t, rule.Annotations["description"], "rule %s description", rule.Alert)
		require.NotEmptyf(t, rule.For, "rule %s hold duration", rule.Alert)
		require.Truef(t, strings.Contains(rule.Expr, "scentstock_"), "rule %s must use exported metrics", rule.Alert)
	}
}
