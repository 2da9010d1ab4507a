package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/basilisk-labs/codex-swarm/internal/store"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(v)
}

// renderStructured handles the "json"/"yaml" output formats uniformly;
// handled reports whether it did, so callers fall through to their own
// table rendering otherwise.
func renderStructured(v interface{}) (handled bool, err error) {
	switch GetOutput() {
	case "json":
		return true, printJSON(v)
	case "yaml":
		return true, printYAML(v)
	default:
		return false, nil
	}
}

// printResult renders v as yaml when -o yaml was requested, json
// otherwise — for commands with no table rendering of their own.
func printResult(v interface{}) error {
	if GetOutput() == "yaml" {
		return printYAML(v)
	}
	return printJSON(v)
}

func printWarning(w string) {
	if w != "" {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

func printTask(t store.Task) error {
	if handled, err := renderStructured(t); handled {
		return err
	}
	fmt.Printf("%s  %-6s %s\n", t.ID, t.Status, t.Title)
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	if t.Owner != "" {
		fmt.Printf("  owner: %s\n", t.Owner)
	}
	if len(t.Tags) > 0 {
		fmt.Printf("  tags: %v\n", t.Tags)
	}
	if len(t.DependsOn) > 0 {
		fmt.Printf("  depends_on: %v\n", t.DependsOn)
	}
	for _, c := range t.Comments {
		fmt.Printf("  [%s] %s\n", c.Author, c.Body)
	}
	return nil
}

func printTaskList(tasks []store.Task) error {
	if handled, err := renderStructured(tasks); handled {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tOWNER\tTITLE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Owner, t.Title)
	}
	return w.Flush()
}
