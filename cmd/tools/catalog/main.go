// cmd/tools/catalog/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"recruit-portal/pkg/registry"
)

func main() {
	listCmd := flag.NewFlagSet("list", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)

	listPath := listCmd.String("path", "", "Catalog file (defaults to the compiled-in catalog)")
	validatePath := validateCmd.String("path", "", "Catalog file (defaults to the compiled-in catalog)")
	exportOut := exportCmd.String("out", "configs/endpoint-catalog.json", "Where to write the catalog")

	updatePath := updateCmd.String("path", "configs/endpoint-catalog.json", "Catalog file to edit")
	idUpdate := updateCmd.String("id", "", "Endpoint ID to update (e.g., listJobs)")
	field := updateCmd.String("field", "", "Field to update (retries, failureMessage, displayName, cacheKey)")
	value := updateCmd.String("value", "", "New value for the field")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listCmd.Parse(os.Args[2:])
		reg, err := load(*listPath)
		if err != nil {
			fail("Error loading catalog: %v", err)
		}
		list(reg)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := load(*validatePath)
		if err != nil {
			fail("Error loading catalog: %v", err)
		}
		if err := reg.Validate(); err != nil {
			fail("Catalog validation failed: %v", err)
		}
		fmt.Printf("Catalog validation passed. Found %d endpoints.\n", len(reg.Endpoints))

	case "export":
		exportCmd.Parse(os.Args[2:])
		reg := registry.Default()
		reg.LastUpdated = time.Now().Format(time.RFC3339)
		if err := save(reg, *exportOut); err != nil {
			fail("Error exporting catalog: %v", err)
		}
		fmt.Printf("Exported %d endpoints to %s\n", len(reg.Endpoints), *exportOut)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := update(*updatePath, *idUpdate, *field, *value); err != nil {
			fail("Error updating endpoint: %v", err)
		}
		fmt.Printf("Updated endpoint %s, field %s to %s\n", *idUpdate, *field, *value)

	case "help":
		fallthrough
	default:
		help()
	}
}

// load reads the catalog at path, or the compiled-in one when path is empty.
func load(path string) (*registry.EndpointRegistry, error) {
	if path == "" {
		return registry.Default(), nil
	}
	return registry.LoadRegistry(path)
}

func list(reg *registry.EndpointRegistry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMETHOD\tPATH\tRETRIES\tCACHE KEY\tINVALIDATES")
	for _, ep := range reg.Endpoints {
		cacheKey := ep.CacheKey
		if cacheKey == "" {
			cacheKey = "-"
		}
		invalidates := strings.Join(ep.Invalidates, ",")
		if invalidates == "" {
			invalidates = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", ep.ID, ep.Method, ep.Path, ep.Retries, cacheKey, invalidates)
	}
	w.Flush()
}

func update(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range reg.Endpoints {
		if reg.Endpoints[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "retries":
			retries, err := strconv.Atoi(value)
			if err != nil || retries < 0 {
				return fmt.Errorf("invalid retries value: %q", value)
			}
			reg.Endpoints[i].Retries = retries
		case "failureMessage":
			reg.Endpoints[i].FailureMessage = value
		case "displayName":
			reg.Endpoints[i].DisplayName = value
		case "cacheKey":
			reg.Endpoints[i].CacheKey = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}
	if !found {
		return fmt.Errorf("endpoint with ID %s not found", id)
	}

	if err := reg.Validate(); err != nil {
		return fmt.Errorf("update leaves the catalog invalid: %w", err)
	}
	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return save(reg, path)
}

func save(reg *registry.EndpointRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

func fail(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}

func help() {
	fmt.Println(`
Usage: catalog <command> [flags]

Commands:
  list     Print every backend endpoint with its cache policy
  validate Validate a catalog file or the compiled-in catalog
  export   Write the compiled-in catalog as JSON
  update   Change one field of an endpoint in a catalog file
  help     Show this help message

Examples:
  catalog list
  catalog export -out configs/endpoint-catalog.json
  catalog update -id listJobs -field retries -value 2
  catalog validate -path configs/endpoint-catalog.json`)
}
