package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"modelcore/internal/codec"
	"modelcore/internal/core"
	"modelcore/internal/modelstore"
	"modelcore/pkg/domain"
)

func newImportCommand(a *app) *cobra.Command {
	var (
		skipDeleted bool
		duplicates  string
	)
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import every model file in a directory, one worker per file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := readSources(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report, err := a.registry.Import(cmd.Context(), sources, modelstore.ImportOptions{
				SkipMarkedDeleted: skipDeleted,
				Duplicates:        modelstore.DuplicatePolicy(duplicates),
			})
			if err != nil {
				return err
			}
			for _, it := range report.Items {
				line := fmt.Sprintf("%s\t%s\t%s", it.Status, it.ModelID, it.Source)
				if it.Err != nil {
					line += "\t" + it.Err.Error()
				}
				fmt.Fprintln(a.stdout, line)
			}
			if failed := report.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d items failed", len(failed), len(report.Items))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipDeleted, "skip-deleted", true, "skip sources carrying the delete marker")
	cmd.Flags().StringVar(&duplicates, "duplicates", string(modelstore.DuplicateReject), "policy for IDs already stored: reject, skip or overwrite")
	return cmd
}

// readSources reads every regular file under dir whose extension names a
// known format. Files are read concurrently, one goroutine each.
func readSources(ctx context.Context, dir string) ([]modelstore.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read import dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !knownExtension(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	sources := make([]modelstore.Source, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// #nosec G304 -- paths come from listing the operator-supplied import directory.
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			sources[i] = modelstore.Source{Name: filepath.Base(path), Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func knownExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "yml" {
		return true
	}
	for _, f := range codec.Formats() {
		if ext == string(f) {
			return true
		}
	}
	return false
}

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a stored model with its ontology declaration first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.registry.ExportStored(cmd.Context(), domain.ModelID(args[0]), domain.Format(format))
			if err != nil {
				return err
			}
			if out == "" {
				_, err = a.stdout.Write(data)
				return err
			}
			return os.WriteFile(out, data, 0o600)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(codec.FormatJSONL), "output format (jsonl, yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to file instead of stdout")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored model IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := a.registry.Store().ListIDs(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(a.stdout, id)
			}
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.registry.Delete(cmd.Context(), domain.ModelID(args[0]), a.meta())
		},
	}
}

func newCreateCommand(a *app) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and save a blank model, printing its ID",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inst, err := a.registry.GenerateBlankModel(ctx, a.meta())
			if err != nil {
				return err
			}
			id := inst.ID()
			if title != "" {
				if _, err := a.registry.AddAnnotation(ctx, id, domain.IRI(id), domain.TitleProperty, title, a.meta()); err != nil {
					return err
				}
			}
			if err := a.registry.Save(ctx, id, core.SaveOptions{ClearUndoHistory: true}, a.meta()); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title annotation of the new model")
	return cmd
}

func newValidateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <id>",
		Short: "Check consistency and shape conformance of a stored model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.registry.Validate(cmd.Context(), domain.ModelID(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
			if !res.Valid() {
				return fmt.Errorf("model %s is not valid", args[0])
			}
			return nil
		},
	}
}
