package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractgen/internal/schema"
)

// TestHelperProcess is a subprocess entrypoint used by tests.
//
// The parent test re-runs the test binary with -test.run=TestHelperProcess
// and GO_WANT_HELPER_PROCESS=1 so main() and its os.Exit can be observed.
// Arguments after a literal "--" are the CLI arguments.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	i := 0
	for ; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
	}
	if i < len(args) {
		os.Args = append([]string{args[0]}, args[i+1:]...)
	} else {
		os.Args = []string{args[0]}
	}

	main()
	os.Exit(0)
}

// runProcess executes main() in a subprocess with the config file pointed
// at configPath.
func runProcess(t *testing.T, configPath string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmdArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"CONTRACT_GEN_CONFIG="+configPath,
	)

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err == nil {
		return outBuf.String(), errBuf.String(), 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return outBuf.String(), errBuf.String(), ee.ExitCode()
	}
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

// isolateConfig points the config file at a temp path and clears the
// override variables. Tests using it cannot run in parallel.
func isolateConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract-gen.yaml")
	t.Setenv("CONTRACT_GEN_CONFIG", path)
	for _, name := range []string{"CONTRACT_GEN_OUTPUT_FORMAT", "CONTRACT_GEN_OUTPUT_PRETTY", "CONTRACT_GEN_SAMPLE_SIZE"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return path
}

// execute runs the CLI in-process and returns stdout, stderr and the exit
// code.
func execute(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const peopleCSV = "Name,Age,City\nAlice,30,Stockholm\nBob,25,Göteborg\nCharlie,35,Malmö\n"

const usersAPI = `openapi: 3.0.0
info: {title: users, version: "1"}
paths:
  /users:
    get:
      summary: List users
    post:
      summary: Create user
      requestBody:
        content:
          application/json:
            schema:
              type: object
              required: [email]
              properties:
                email: {type: string, maxLength: 120}
                age: {type: integer, minimum: 0}
`

func shopDSN(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	country TEXT
);
INSERT INTO customers (id, email, country) VALUES (1, 'a@example.com', 'SE'), (2, 'b@example.com', NULL);
`)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return "sqlite:///" + path
}

// ---- subprocess ----

func TestMain_SourceCSV_WritesContractToStdout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	csvPath := writeFile(t, dir, "people.csv", peopleCSV)

	stdout, stderr, code := runProcess(t, filepath.Join(dir, "none.yaml"), "source", "csv", csvPath)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d\nstderr:\n%s\nstdout:\n%s", code, stderr, stdout)
	}

	c, err := schema.DecodeSourceContract([]byte(stdout))
	require.NoError(t, err)
	csv, ok := c.(*schema.CSVSource)
	require.True(t, ok, "got %T", c)
	assert.Equal(t, "people", csv.SourceID)
	assert.Equal(t, csvPath, csv.SourcePath)
	assert.Len(t, csv.Schema.Fields, 3)
	assert.Equal(t, 3, csv.Quality.TotalRows)
	assert.False(t, strings.Contains(stdout, "\n  "), "compact JSON by default")
}

func TestMain_MissingFile_ExitsNonZero(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missing := filepath.Join(dir, "gone.csv")

	stdout, stderr, code := runProcess(t, filepath.Join(dir, "none.yaml"), "source", "csv", missing)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d\nstderr:\n%s", code, stderr)
	}
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "✗ Error: File not found: "+missing+"\n")
	assert.Contains(t, stderr, "  Hint: Check the file path and try again\n")
}

func TestMain_UnknownCommand(t *testing.T) {
	t.Parallel()

	_, stderr, code := runProcess(t, filepath.Join(t.TempDir(), "none.yaml"), "parquet", "x")
	require.Equal(t, 1, code)
	assert.True(t, strings.HasPrefix(stderr, "✗ Error: "), stderr)
}

// ---- in-process ----

func TestSourceCSV_Output(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "Bank Export-2024.csv", "a;b\n1;x\n2;y\n")

	t.Run("pretty", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "csv", csvPath, "--pretty", "--delimiter", ";")
		require.Equal(t, 0, code, stderr)
		assert.True(t, strings.HasPrefix(stdout, "{\n  \"contract_type\": \"source\",\n"), stdout)
		assert.Contains(t, stdout, `"source_id": "bank_export_2024"`)
		assert.Contains(t, stdout, `"delimiter": ";"`)
	})

	t.Run("yaml file", func(t *testing.T) {
		out := filepath.Join(dir, "contracts", "nested", "src.yaml")
		stdout, stderr, code := execute(t, "source", "csv", csvPath, "-o", out, "-f", "yaml", "--id", "bank")
		require.Equal(t, 0, code, stderr)
		assert.Empty(t, stdout)
		assert.Equal(t, "✓ Contract written to "+out+"\n", stderr)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "contract_type: source\n"), string(data))
		assert.Contains(t, string(data), "source_id: bank\n")
	})

	t.Run("unknown format", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "csv", csvPath, "--format", "xml")
		require.Equal(t, 1, code)
		assert.Empty(t, stdout)
		assert.Equal(t, "✗ Error: Unknown output format: xml\n", stderr)
	})

	t.Run("bad delimiter", func(t *testing.T) {
		_, stderr, code := execute(t, "source", "csv", csvPath, "--delimiter", "::")
		require.Equal(t, 1, code)
		assert.Contains(t, stderr, "  Hint: Check the file format and parameters\n")
	})
}

func TestSourceCSV_ConfigDefaults(t *testing.T) {
	cfgPath := isolateConfig(t)
	writeFile(t, filepath.Dir(cfgPath), filepath.Base(cfgPath), "version: \"1.0\"\ndefaults:\n  output:\n    format: yaml\n")
	csvPath := writeFile(t, t.TempDir(), "people.csv", peopleCSV)

	stdout, stderr, code := execute(t, "source", "csv", csvPath)
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "contract_type: source\n"), stdout)

	stdout, stderr, code = execute(t, "source", "csv", csvPath, "-f", "json")
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "{\"contract_type\":\"source\""), stdout)
}

func TestSourceJSON(t *testing.T) {
	isolateConfig(t)
	path := writeFile(t, t.TempDir(), "events.ndjson", "{\"id\":1,\"kind\":\"a\"}\n{\"id\":2,\"kind\":null}\n")

	stdout, stderr, code := execute(t, "source", "json", path)
	require.Equal(t, 0, code, stderr)

	c, err := schema.DecodeSourceContract([]byte(stdout))
	require.NoError(t, err)
	js, ok := c.(*schema.JSONSource)
	require.True(t, ok, "got %T", c)
	assert.Equal(t, "events", js.SourceID)
	assert.True(t, js.IsNDJSON)
	assert.Equal(t, 2, js.Quality.TotalRows)
}

func TestSourceDatabase(t *testing.T) {
	cfgPath := isolateConfig(t)
	dsn := shopDSN(t)
	writeFile(t, filepath.Dir(cfgPath), filepath.Base(cfgPath), "version: \"1.0\"\nconnections:\n  shop: "+dsn+"\n")

	t.Run("analyze", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "database", "analyze", dsn, "customers", "--type", "sqlite", "--id", "crm")
		require.Equal(t, 0, code, stderr)

		c, err := schema.DecodeSourceContract([]byte(stdout))
		require.NoError(t, err)
		db, ok := c.(*schema.DatabaseSource)
		require.True(t, ok, "got %T", c)
		assert.Equal(t, "crm", db.SourceID)
		assert.Equal(t, "sqlite", db.DatabaseType)
		assert.Equal(t, 2, db.Quality.TotalRows)
	})

	t.Run("named connection", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "database", "analyze", "@shop", "customers", "--type", "sqlite")
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, `"source_id":"customers"`)
	})

	t.Run("unknown connection", func(t *testing.T) {
		_, stderr, code := execute(t, "source", "database", "analyze", "@crm", "customers", "--type", "sqlite")
		require.Equal(t, 1, code)
		assert.Contains(t, stderr, "✗ Error: Connection 'crm' not found in config\n")
	})

	t.Run("missing table", func(t *testing.T) {
		_, stderr, code := execute(t, "source", "database", "analyze", dsn, "invoices", "--type", "sqlite")
		require.Equal(t, 1, code)
		assert.Contains(t, stderr, "✗ Error: Table 'invoices' not found")
		assert.Contains(t, stderr, "  Hint: Check your connection string and table name\n")
	})

	t.Run("type is required", func(t *testing.T) {
		_, stderr, code := execute(t, "source", "database", "analyze", dsn, "customers")
		require.Equal(t, 1, code)
		assert.Contains(t, stderr, `"type"`)
	})

	t.Run("list text", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "database", "list", dsn, "--type", "sqlite")
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "Tables (1 total):\n  customers (3 columns)\n", stdout)
	})

	t.Run("list json", func(t *testing.T) {
		stdout, stderr, code := execute(t, "source", "database", "list", "@shop", "--type", "sqlite", "-f", "json")
		require.Equal(t, 0, code, stderr)

		var tables []schema.TableInfo
		require.NoError(t, json.Unmarshal([]byte(stdout), &tables))
		require.Len(t, tables, 1)
		assert.Equal(t, "customers", tables[0].TableName)
		assert.True(t, tables[0].HasPrimaryKey)
		assert.Empty(t, tables[0].Columns)
	})

	t.Run("list unsupported type", func(t *testing.T) {
		_, stderr, code := execute(t, "source", "database", "list", dsn, "--type", "oracle")
		require.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(stderr, "✗ Error: Failed to list tables: "), stderr)
		assert.Contains(t, stderr, "Unsupported database type: oracle")
	})
}

func TestSourceSupabase_InvalidURL(t *testing.T) {
	isolateConfig(t)

	_, stderr, code := execute(t, "source", "supabase", "list", "http://example.com", "key")
	require.Equal(t, 1, code)
	assert.Equal(t, "✗ Error: Project URL must start with 'https://': http://example.com\n", stderr)

	_, stderr, code = execute(t, "source", "supabase", "analyze", "https://example.com", "key", "users")
	require.Equal(t, 1, code)
	assert.Equal(t, "✗ Error: Project URL must be a valid Supabase URL (*.supabase.co): https://example.com\n"+
		"  Hint: Check the project URL, API key, and table name\n", stderr)
}

func TestDestinationAPI(t *testing.T) {
	isolateConfig(t)
	spec := writeFile(t, t.TempDir(), "users.yaml", usersAPI)

	t.Run("generate", func(t *testing.T) {
		stdout, stderr, code := execute(t, "destination", "api", "generate", spec, "/users", "--id", "users_api")
		require.Equal(t, 0, code, stderr)

		c, err := schema.DecodeContract([]byte(stdout))
		require.NoError(t, err)
		d, ok := c.(*schema.DestinationContract)
		require.True(t, ok, "got %T", c)
		assert.Equal(t, "users_api", d.DestinationID)
		assert.Len(t, d.Schema.Fields, 2)
		assert.Equal(t, []string{"email"}, d.ValidationRules.RequiredFields)
		assert.Equal(t, "POST", d.Metadata["http_method"])
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, stderr, code := execute(t, "destination", "api", "generate", spec, "/orders", "--id", "x")
		require.Equal(t, 1, code)
		assert.Contains(t, stderr, "Endpoint '/orders' not found in schema")
		assert.Contains(t, stderr, "  Hint: Check your OpenAPI schema file and endpoint path\n")
	})

	t.Run("list", func(t *testing.T) {
		stdout, stderr, code := execute(t, "destination", "api", "list", spec)
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "Endpoints (2 total):\n  GET    /users\n  POST   /users\n", stdout)
	})

	t.Run("list with fields", func(t *testing.T) {
		stdout, stderr, code := execute(t, "destination", "api", "list", spec, "--with-fields", "--method", "post")
		require.Equal(t, 0, code, stderr)
		assert.True(t, strings.HasPrefix(stdout, "Endpoints (1 total):\n  POST   /users\n    Fields:\n"), stdout)
		assert.Contains(t, stdout, "      - email (Required)\n")
		assert.Contains(t, stdout, "      - age\n")
	})

	t.Run("list json", func(t *testing.T) {
		stdout, stderr, code := execute(t, "destination", "api", "list", spec, "-f", "json", "--method", "GET")
		require.Equal(t, 0, code, stderr)
		var eps []schema.EndpointInfo
		require.NoError(t, json.Unmarshal([]byte(stdout), &eps))
		require.Len(t, eps, 1)
		assert.Equal(t, "List users", eps[0].Summary)
	})

	t.Run("missing file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		_, stderr, code := execute(t, "destination", "api", "list", missing)
		require.Equal(t, 1, code)
		assert.Equal(t, "✗ Error: File not found: "+missing+"\n  Hint: Check the file path and try again\n", stderr)
	})
}

func TestDestinationDatabase(t *testing.T) {
	isolateConfig(t)
	dsn := shopDSN(t)

	stdout, stderr, code := execute(t, "destination", "database", "--conn", dsn, "--table", "customers", "--id", "crm_out", "--type", "sqlite")
	require.Equal(t, 0, code, stderr)

	c, err := schema.DecodeContract([]byte(stdout))
	require.NoError(t, err)
	d := c.(*schema.DestinationContract)
	assert.Equal(t, []string{"id", "email"}, d.ValidationRules.RequiredFields)
	assert.Equal(t, "database", d.Metadata["destination_type"])

	_, stderr, code = execute(t, "destination", "database", "--conn", dsn, "--table", "invoices", "--id", "x", "--type", "sqlite")
	require.Equal(t, 1, code)
	assert.Contains(t, stderr, "✗ Error: Failed to inspect database table: ")
}

func TestTransform(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "people.csv", peopleCSV)
	fields := writeFile(t, dir, "fields.yaml", "fields: [name, age]\ntypes: [text, integer]\n")
	srcOut := filepath.Join(dir, "src.json")
	dstOut := filepath.Join(dir, "dst.json")

	_, stderr, code := execute(t, "source", "csv", csvPath, "-o", srcOut)
	require.Equal(t, 0, code, stderr)
	_, stderr, code = execute(t, "destination", "csv", "--id", "people_out", "--schema-file", fields, "-o", dstOut)
	require.Equal(t, 0, code, stderr)

	t.Run("map fields", func(t *testing.T) {
		stdout, stderr, code := execute(t, "transform", "--id", "people_to_out", "--source", srcOut, "--destination", dstOut,
			"--map-fields", "--batch-size", "50")
		require.Equal(t, 0, code, stderr)

		c, err := schema.DecodeContract([]byte(stdout))
		require.NoError(t, err)
		tr, ok := c.(*schema.TransformationContract)
		require.True(t, ok, "got %T", c)
		assert.Equal(t, "people_to_out", tr.TransformationID)
		assert.Equal(t, "people", tr.SourceRef)
		assert.Equal(t, "people_out", tr.DestinationRef)
		assert.Equal(t, 50, tr.ExecutionPlan.BatchSize)
		assert.InDelta(t, 0.1, tr.ExecutionPlan.ErrorThreshold, 1e-9)
		assert.Len(t, tr.FieldMappings, 2)
	})

	t.Run("generated id", func(t *testing.T) {
		stdout, stderr, code := execute(t, "transform", "--source", srcOut, "--destination", dstOut)
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, `"transformation_id":"transform_`)
		assert.Contains(t, stdout, `"field_mappings":[]`)
	})

	t.Run("swapped inputs", func(t *testing.T) {
		_, stderr, code := execute(t, "transform", "--source", dstOut, "--destination", srcOut)
		require.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(stderr, "✗ Error: Invalid source contract "), stderr)
	})

	t.Run("bad threshold", func(t *testing.T) {
		_, stderr, code := execute(t, "transform", "--source", srcOut, "--destination", dstOut, "--error-threshold", "2")
		require.Equal(t, 1, code)
		assert.True(t, strings.HasPrefix(stderr, "✗ Error: "), stderr)
	})
}

func TestConfigCommands(t *testing.T) {
	path := isolateConfig(t)

	stdout, _, code := execute(t, "config", "path")
	require.Equal(t, 0, code)
	assert.Equal(t, path+"\n", stdout)

	stdout, stderr, code := execute(t, "config", "show")
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "Config file: "+path+"\n(using built-in defaults, file does not exist)\n\nversion: \"1.0\"\n"), stdout)

	_, stderr, code = execute(t, "config", "validate")
	require.Equal(t, 1, code)
	assert.Equal(t, "✗ Error: Config file does not exist: "+path+"\n  Hint: Run 'contract-gen config init' first\n", stderr)

	stdout, stderr, code = execute(t, "config", "init")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "✓ Created config file: "+path+"\n", stderr)
	assert.Equal(t, "Edit this file to customize your defaults and connections.\n", stdout)

	_, stderr, code = execute(t, "config", "init")
	require.Equal(t, 1, code)
	assert.Equal(t, "✗ Error: Config file already exists: "+path+"\n  Hint: Use --force to overwrite, or edit the existing file\n", stderr)

	_, _, code = execute(t, "config", "init", "--force")
	require.Equal(t, 0, code)

	_, stderr, code = execute(t, "config", "validate")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "✓ Config file is valid\n", stderr)

	writeFile(t, filepath.Dir(path), filepath.Base(path), "version: \"\"\ndefaults:\n  output:\n    format: xml\n")
	_, stderr, code = execute(t, "config", "validate")
	require.Equal(t, 1, code)
	assert.Equal(t, "✗ Error: Config validation failed:\n"+
		"  - Missing 'version' field\n"+
		"  - 'defaults.output.format' must be 'json' or 'yaml'\n", stderr)

	stdout, _, code = execute(t, "config", "env")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "CONTRACT_GEN_OUTPUT_FORMAT")
}

func TestGlobalFlags(t *testing.T) {
	isolateConfig(t)

	_, stderr, code := execute(t, "--log-level", "loud", "config", "path")
	require.Equal(t, 1, code)
	assert.Contains(t, stderr, "✗ Error: invalid log level")

	stdout, stderr, code := execute(t, "--metrics", "carrier-pigeon", "config", "path")
	require.Equal(t, 0, code, stderr)
	assert.NotEmpty(t, stdout)
}
