package collector

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// newCSVReader returns a csv.Reader over r that decodes UTF-16 (either
// byte order) and strips a UTF-8 BOM. Input without a BOM is read as UTF-8.
func newCSVReader(r io.Reader) *csv.Reader {
	tr := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	cr := csv.NewReader(tr)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}
