// Package export renders delivered leads as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"leadgen_backend/internal/leads/domain"
)

// EmailSeparator joins multiple addresses inside the emails column.
const EmailSeparator = "; "

// Header is the fixed column order.
var Header = []string{"ig_id", "username", "biography", "followers", "category", "emails"}

// CSV renders leads with RFC 4180 quoting and CRLF line endings. A lead with
// unknown followers gets an empty field.
func CSV(leads []domain.Lead) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, l := range leads {
		if err := w.Write(row(l)); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func row(l domain.Lead) []string {
	followers := ""
	if l.Followers != nil {
		followers = strconv.FormatInt(*l.Followers, 10)
	}
	return []string{
		l.ID,
		l.Username,
		l.Biography,
		followers,
		l.Category,
		strings.Join(l.Emails, EmailSeparator),
	}
}
