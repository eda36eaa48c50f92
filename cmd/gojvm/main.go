// Command gojvm runs a compiled Java class's public static void main
// against the bytecode interpreter in pkg/vm.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/daimatz/gojvm/pkg/classloader"
	"github.com/daimatz/gojvm/pkg/vm"
)

func main() {
	cmd := &cli.Command{
		Name:      "gojvm",
		Usage:     "a bytecode interpreter for a flat classpath of .class files and jars",
		ArgsUsage: "<main-class>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "classpath",
				Aliases: []string{"cp"},
				Usage:   "directory of .class files or .jar archive to add to the classpath (repeatable)",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	mainClass := cmd.Args().First()
	if mainClass == "" {
		return fmt.Errorf("usage: gojvm [-cp dir|jar]... <main-class>")
	}

	cp := classloader.NewClasspath()
	entries := cmd.StringSlice("classpath")
	if len(entries) == 0 {
		entries = classpathFromEnv()
	}
	for _, entry := range entries {
		if err := addClasspathEntry(cp, entry); err != nil {
			return err
		}
	}

	jvm := vm.NewVM(cp)
	if err := jvm.RunMain(mainClass, cmd.Args().Tail()); err != nil {
		return fmt.Errorf("exception running %s: %w", mainClass, err)
	}
	return nil
}

// classpathFromEnv mirrors a JAVA_TOOL_OPTIONS-style additive-args fallback:
// when no -cp flag was given, GOJVM_CLASSPATH (a PATH-separator-delimited
// list, same convention as javac's CLASSPATH) supplies the default entries.
func classpathFromEnv() []string {
	raw := os.Getenv("GOJVM_CLASSPATH")
	if raw == "" {
		return []string{"."}
	}
	return strings.Split(raw, string(os.PathListSeparator))
}

// addClasspathEntry adds a single classpath entry: a .jar archive is read
// with AddJar, a directory is walked recursively for .class files, and a
// bare .class file is added directly.
func addClasspathEntry(cp *classloader.Classpath, entry string) error {
	info, err := os.Stat(entry)
	if err != nil {
		return fmt.Errorf("classpath entry %s: %w", entry, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(entry)
		if err != nil {
			return fmt.Errorf("reading %s: %w", entry, err)
		}
		if strings.HasSuffix(entry, ".jar") {
			return cp.AddJar(data)
		}
		return cp.AddClass(data)
	}
	return filepath.WalkDir(entry, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		return cp.AddClass(data)
	})
}
