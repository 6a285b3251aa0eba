package warehouse

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// RenderScript renders every statement of the dialect, in step order, as one
// script. With IntegrationExists set the integration DDL is omitted.
func RenderScript(d Dialect, p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, step := range d.Steps {
		var stmts []string
		for i, src := range step.Statements {
			q, err := render(fmt.Sprintf("%s[%d]", step.Name, i), src, p)
			if err != nil {
				return "", err
			}
			if q != "" {
				stmts = append(stmts, q)
			}
		}
		if len(stmts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "-- %s\n", step.Name)
		for _, q := range stmts {
			b.WriteString(q)
			b.WriteString(";\n\n")
		}
	}
	return b.String(), nil
}

// Environment is the role, warehouse, database, and schema of one deployment.
type Environment struct {
	Name      string `mapstructure:"name"`
	Role      string `mapstructure:"role"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
}

// DefaultEnvironments are used when no environments file is given.
func DefaultEnvironments() []Environment {
	return []Environment{
		{Name: "dev", Role: "DEV_ROLE", Warehouse: "DEV_WAREHOUSE", Database: "CO2_DB", Schema: "DEV_SCHEMA"},
		{Name: "prod", Role: "PROD_ROLE", Warehouse: "PROD_WAREHOUSE", Database: "CO2_DB", Schema: "PROD_SCHEMA"},
	}
}

func (e Environment) validate() error {
	if e.Name == "" || strings.ContainsAny(e.Name, `/\.`) {
		return fmt.Errorf("invalid environment name %q", e.Name)
	}
	for label, v := range map[string]string{"role": e.Role, "warehouse": e.Warehouse, "database": e.Database, "schema": e.Schema} {
		if !identPattern.MatchString(v) {
			return fmt.Errorf("environment %s: invalid %s %q", e.Name, label, v)
		}
	}
	return nil
}

// FileName is the preamble file written for the environment.
func (e Environment) FileName() string {
	return "config_" + e.Name + ".sql"
}

const environmentSQL = `USE ROLE {{.Env.Role}};
USE WAREHOUSE {{.Env.Warehouse}};
USE DATABASE {{.Env.Database}};
USE SCHEMA {{.Env.Schema}};

CREATE TABLE IF NOT EXISTS {{.Env.Schema}}.{{.Names.Harmonized}} (
    YEAR INT,
    MONTH INT,
    DAY INT,
    DECIMAL_DATE FLOAT,
    CO2 FLOAT,
    NORMALIZED_CO2 FLOAT,
    PRIMARY KEY (YEAR, MONTH, DAY)
);
`

// RenderEnvironment renders the session preamble for one environment.
func RenderEnvironment(env Environment, names Names) (string, error) {
	if err := env.validate(); err != nil {
		return "", err
	}
	data := struct {
		Env   Environment
		Names Names
	}{env, names}

	var b strings.Builder
	tmpl, err := newTemplate("environment", environmentSQL)
	if err != nil {
		return "", err
	}
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render environment %s: %w", env.Name, err)
	}
	return b.String(), nil
}

// LoadEnvironments reads the "environments" list from a YAML, JSON, or TOML
// file. An empty path returns DefaultEnvironments.
func LoadEnvironments(path string) ([]Environment, error) {
	if path == "" {
		return DefaultEnvironments(), nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read environments file: %w", err)
	}
	var envs []Environment
	if err := v.UnmarshalKey("environments", &envs); err != nil {
		return nil, fmt.Errorf("decode environments: %w", err)
	}
	if len(envs) == 0 {
		return nil, fmt.Errorf("no environments defined in %s", path)
	}
	for _, e := range envs {
		if err := e.validate(); err != nil {
			return nil, err
		}
	}
	return envs, nil
}
