package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"autoapply/models"
	"autoapply/services"
	"autoapply/utils"
)

// InspectedField is one catalogued field and the category it matched, if any.
type InspectedField struct {
	Index      int                  `json:"index"`
	Kind       services.FieldKind   `json:"kind"`
	Identity   string               `json:"identity"`
	Category   models.FieldCategory `json:"category,omitempty"`
	MatchedVia string               `json:"matched_via,omitempty"`
	Score      int                  `json:"score,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <page.html>",
	Short: "Show how the matcher reads a saved form page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := inspectFile(cmd.Context(), args[0], logger)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), fields)
	},
}

// inspectFile scans a saved HTML page without a browser.
func inspectFile(ctx context.Context, path string, log *utils.Logger) ([]InspectedField, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	pageURL := "file://" + filepath.ToSlash(abs)

	browser := services.NewStaticBrowser(services.StaticSite{pageURL: string(raw)})
	page, err := browser.Open(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer page.Close()

	fields, err := services.NewFieldCatalog(log).Scan(page)
	if err != nil {
		return nil, err
	}
	matches := services.NewFieldMatcher(log).Match(fields)

	byIndex := make(map[int]services.MatchCandidate, len(matches))
	for _, m := range matches {
		byIndex[m.Field.Index] = m
	}

	out := make([]InspectedField, 0, len(fields))
	for _, f := range fields {
		row := InspectedField{Index: f.Index, Kind: f.Kind, Identity: f.Attrs.Identity()}
		if m, ok := byIndex[f.Index]; ok {
			row.Category = m.Category
			row.MatchedVia = m.Provenance()
			row.Score = m.Score
		}
		out = append(out, row)
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
