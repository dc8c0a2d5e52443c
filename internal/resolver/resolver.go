package resolver

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"wacast/internal/domain"
	"wacast/internal/phone"
)

// Default field-name candidates, matched fuzzily against spreadsheet
// headers. The Spanish variants come from the deployments this tool grew
// up in.
var (
	DefaultNameFields  = []string{"nombre", "name", "cliente", "contact", "contacto", "full name", "nombre completo"}
	DefaultPhoneFields = []string{"telefono", "teléfono", "phone", "celular", "movil", "móvil", "whatsapp", "número", "numero", "number"}
)

// headerRowOffset maps a zero-based data row index to the human-visible row
// number in the source sheet (row 1 is the header).
const headerRowOffset = 2

type Resolver struct {
	Normalizer  phone.Normalizer
	NameFields  []string
	PhoneFields []string
}

func New(n phone.Normalizer) *Resolver {
	return &Resolver{
		Normalizer:  n,
		NameFields:  DefaultNameFields,
		PhoneFields: DefaultPhoneFields,
	}
}

// Resolve turns raw row records into dispatch-ready recipients. Rows without
// a usable phone become input errors and never reach dispatch. Duplicate
// phones are kept; dedup belongs to the contact list, not the broadcast.
func (r *Resolver) Resolve(rows []map[string]string, template string) ([]domain.Recipient, []string) {
	recipients := make([]domain.Recipient, 0, len(rows))
	var inputErrors []string

	for i, row := range rows {
		rowNum := i + headerRowOffset

		name := strings.TrimSpace(findField(row, r.NameFields))
		raw := strings.TrimSpace(findField(row, r.PhoneFields))
		if raw == "" {
			inputErrors = append(inputErrors, fmt.Sprintf("Row %d: missing phone", rowNum))
			continue
		}

		canonical := r.Normalizer.Normalize(raw)
		if canonical == "" {
			inputErrors = append(inputErrors, fmt.Sprintf("Row %d: invalid phone (%s)", rowNum, raw))
			continue
		}

		if name == "" {
			name = raw
		}

		recipients = append(recipients, domain.Recipient{
			RawAddress:       raw,
			CanonicalAddress: canonical,
			DisplayName:      name,
			RenderedMessage:  r.render(template, name, row),
			SourceRow:        row,
		})
	}
	return recipients, inputErrors
}

// FromPhones resolves a direct phone list. There is no row data, so the
// template is used as-is and the raw phone doubles as display name.
func (r *Resolver) FromPhones(phones []string, template string) ([]domain.Recipient, []string) {
	recipients := make([]domain.Recipient, 0, len(phones))
	var inputErrors []string

	for i, raw := range phones {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			inputErrors = append(inputErrors, fmt.Sprintf("Phone %d: missing phone", i+1))
			continue
		}
		canonical := r.Normalizer.Normalize(raw)
		if canonical == "" {
			inputErrors = append(inputErrors, fmt.Sprintf("Phone %d: invalid phone (%s)", i+1, raw))
			continue
		}
		recipients = append(recipients, domain.Recipient{
			RawAddress:       raw,
			CanonicalAddress: canonical,
			DisplayName:      raw,
			RenderedMessage:  r.render(template, raw, nil),
			SourceRow:        nil,
		})
	}
	return recipients, inputErrors
}

// render substitutes {candidate} name placeholders with the display name and
// {{field}} placeholders with row values. {{field}} matching is exact and
// case-sensitive; unknown fields stay literal.
func (r *Resolver) render(template, displayName string, row map[string]string) string {
	out := template
	if displayName != "" {
		for _, cand := range r.NameFields {
			out = strings.ReplaceAll(out, "{"+cand+"}", displayName)
		}
	}
	for key, val := range row {
		out = strings.ReplaceAll(out, "{{"+key+"}}", val)
	}
	return out
}

// findField returns the value of the first row field whose folded name
// contains any folded candidate. Keys are scanned in sorted order so ties
// resolve deterministically.
func findField(row map[string]string, candidates []string) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, cand := range candidates {
		target := foldKey(cand)
		for _, key := range keys {
			if row[key] == "" {
				continue
			}
			if strings.Contains(foldKey(key), target) {
				return row[key]
			}
		}
	}
	return ""
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldKey lowercases, strips combining diacritical marks, and removes all
// whitespace so "Teléfono " matches "telefono".
func foldKey(s string) string {
	s = strings.ToLower(s)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
