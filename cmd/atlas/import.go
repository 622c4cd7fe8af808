package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/lmarchau/provider-atlas/internal/domain"
	"github.com/lmarchau/provider-atlas/internal/store"
)

func newImportCmd(a *app) *cobra.Command {
	var skipDuplicates bool
	var noResolve bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk-load provider records from a CSV file",
		Long: `Reads a CSV file with a header row and upserts each row into the
directory. Recognized columns: companyName, contactName, firstName,
address, email, phone, rate, travelFees, totalCost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, a, args[0], skipDuplicates, noResolve)
		},
	}
	cmd.Flags().BoolVar(&skipDuplicates, "skip-duplicates", true,
		"leave rows whose email+phone already exist untouched")
	cmd.Flags().BoolVar(&noResolve, "no-resolve", false,
		"import without geocoding addresses")
	return cmd
}

func runImport(cmd *cobra.Command, a *app, path string, skipDuplicates, noResolve bool) error {
	rows, err := readProviderCSV(path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to import")
		return nil
	}

	kv, err := a.openMirror()
	if err != nil {
		return err
	}
	opts := store.Options{Remote: a.buildRemote()}
	if !noResolve {
		opts.Resolver = a.buildResolver(kv)
	}
	st := a.buildStore(kv, opts)

	bar := progressbar.Default(int64(len(rows)), "importing")
	summary, err := st.ImportBatch(cmd.Context(), rows, store.ImportOptions{
		SkipDuplicates: skipDuplicates,
		Progress: func(done, _ int) {
			bar.Set(done) //nolint:errcheck // cosmetic
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d duplicates\n", summary.Added, summary.Skipped)
	if summary.RemoteErrors > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "warning: %d records saved locally only, remote store unreachable\n",
			summary.RemoteErrors)
	}
	return nil
}

// readProviderCSV parses a header-keyed CSV into provider records. Unknown
// columns are ignored so exports from other tools load as-is.
func readProviderCSV(path string) ([]domain.ProviderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["email"]; !ok {
		return nil, fmt.Errorf("missing required column %q", "email")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rows []domain.ProviderRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, domain.ProviderRecord{
			CompanyName: field(row, "companyname"),
			ContactName: field(row, "contactname"),
			FirstName:   field(row, "firstname"),
			Address:     field(row, "address"),
			Email:       field(row, "email"),
			Phone:       field(row, "phone"),
			Rate:        field(row, "rate"),
			TravelFees:  field(row, "travelfees"),
			TotalCost:   field(row, "totalcost"),
		})
	}
	return rows, nil
}
