package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/recordkit/pkg/paginate"
	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/schema"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// printRecord writes one record as attribute/value lines or a JSON object.
func (a *app) printRecord(w io.Writer, rec *record.Record) error {
	if a.jsonMode {
		return writeJSON(w, rec)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, attr := range rec.Type().Attributes {
		v, _ := rec.Get(attr)
		fmt.Fprintf(tw, "%s:\t%s\n", attr, formatValue(v))
	}
	return tw.Flush()
}

// listing is the JSON shape of a record list.
type listing struct {
	Items []*record.Record `json:"items"`
	Pages *paginate.Pages  `json:"pages,omitempty"`
}

// printRecords writes records as a table with one column per attribute, or
// as a JSON listing. pages is optional.
func (a *app) printRecords(w io.Writer, rt *schema.RecordType, recs []*record.Record, pages *paginate.Pages) error {
	if a.jsonMode {
		if recs == nil {
			recs = []*record.Record{}
		}
		return writeJSON(w, listing{Items: recs, Pages: pages})
	}
	if len(recs) == 0 {
		fmt.Fprintf(w, "No %s records found.\n", rt.Name)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(rt.Attributes, "\t")))
	for _, rec := range recs {
		cells := make([]string, len(rt.Attributes))
		for i, attr := range rt.Attributes {
			v, _ := rec.Get(attr)
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if pages != nil {
		fmt.Fprintf(w, "Page %d of %d (%d records)\n", pages.Current, pages.Last, pages.TotalItems)
	}
	return nil
}

// printFailures writes the validation failures of rec sorted by attribute.
func (a *app) printFailures(w io.Writer, failures map[string]types.Failure) error {
	if a.jsonMode {
		return writeJSON(w, map[string]any{"invalid": failures})
	}
	attrs := make([]string, 0, len(failures))
	for attr := range failures {
		attrs = append(attrs, attr)
	}
	sort.Strings(attrs)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTRIBUTE\tRULE\tVALUE")
	for _, attr := range attrs {
		f := failures[attr]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", attr, f.Rule, formatValue(f.Value))
	}
	return tw.Flush()
}

// typeSummary is the JSON shape of one record type.
type typeSummary struct {
	Name        string               `json:"name"`
	Table       string               `json:"table"`
	Attributes  []string             `json:"attributes"`
	PrimaryKeys []string             `json:"primary_keys"`
	Relations   []types.RelationDecl `json:"relations,omitempty"`
	SoftDelete  bool                 `json:"soft_delete"`
	Timestamps  bool                 `json:"timestamps"`
}

func summarize(rt *schema.RecordType) typeSummary {
	return typeSummary{
		Name:        rt.Name,
		Table:       rt.Table,
		Attributes:  rt.Attributes,
		PrimaryKeys: rt.PrimaryKeys,
		Relations:   rt.Relations,
		SoftDelete:  rt.SoftDelete != nil,
		Timestamps:  rt.Timestamps != nil,
	}
}

func (a *app) printTypes(w io.Writer, rts []*schema.RecordType) error {
	if a.jsonMode {
		out := make([]typeSummary, len(rts))
		for i, rt := range rts {
			out[i] = summarize(rt)
		}
		return writeJSON(w, out)
	}
	if len(rts) == 0 {
		fmt.Fprintln(w, "No record types found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTABLE\tKEY\tATTRIBUTES\tRELATIONS")
	for _, rt := range rts {
		rels := make([]string, len(rt.Relations))
		for i, r := range rt.Relations {
			rels[i] = r.Name + "->" + r.Model
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rt.Name, rt.Table,
			strings.Join(rt.PrimaryKeys, ","), strings.Join(rt.Attributes, ","), strings.Join(rels, ","))
	}
	return tw.Flush()
}
