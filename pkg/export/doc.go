// Package export serializes result tables for downstream tools.
//
// # Overview
//
// Every table of a results.Bundle is a table.Frame: a single header row
// (multi-level column labels joined with "/") followed by formatted rows.
// The row position is never written. Missing values are empty cells.
//
// # Supported Formats
//
// CSV:
//   - Field separator defaults to ";" and can be changed per export
//   - Quoting follows encoding/csv
//
// JSON:
//   - Header and rows as text, plus export metadata
//   - Can be read back with ReadJSON and written again in another format
//
// XLSX:
//   - One sheet named after the table
//   - Numeric cells are stored as numbers
//
// Postgres:
//   - PostgresSink replaces one table per frame inside a transaction
//   - All frame columns are text, plus an integer row_index
//
// # HTTP API
//
// Export endpoint: GET /v1/sessions/{id}/export/{table}
// Query parameters:
//   - format: "csv", "json" or "xlsx" (default: csv)
//   - delimiter: CSV field separator (default: ;)
//   - level: aggregate time tables to Hour, Day, Week, Month or Year
//   - method: sum, mean, min, max or mixed (default: sum)
//   - index: "true" to include Hour..Year columns
//
// Example:
//
//	curl "http://localhost:8080/v1/sessions/$ID/export/energy_balance?level=Day" \
//	  -o energy_balance.csv
//
// # Programmatic Usage
//
//	f, _ := bundle.Table(results.TableEnergyBalance)
//	file, _ := os.Create("energy_balance.csv")
//	defer file.Close()
//
//	result, err := export.WriteCSV(file, "energy_balance", f, export.DefaultDelimiter)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Exported %d rows\n", result.Rows)
//
// Summary workbooks prepared by hand can be read with ReadSummaryXLSX, which
// returns the same table.Wide a bundle's summary group decodes to.
package export
