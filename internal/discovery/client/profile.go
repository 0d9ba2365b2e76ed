package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Profile is a lead as returned by the discovery service.
type Profile struct {
	ID        string
	Username  string
	FullName  string
	Biography string
	Followers *int64
	Category  string
	Emails    []string
}

// rawProfile accepts the field aliases the discovery service has used.
type rawProfile struct {
	IgID        flexString `json:"ig_id"`
	ID          flexString `json:"id"`
	PK          flexString `json:"pk"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Biography   string     `json:"biography"`
	Followers   flexInt    `json:"followers"`
	FollowerCnt flexInt    `json:"follower_count"`
	Category    string     `json:"category"`
	CategoryNm  string     `json:"category_name"`
	Emails      []string   `json:"emails"`
	Email       string     `json:"email"`
	PublicEmail string     `json:"public_email"`
}

func (r rawProfile) toProfile() Profile {
	p := Profile{
		ID:        firstNonEmpty(string(r.IgID), string(r.ID), string(r.PK)),
		Username:  r.Username,
		FullName:  r.FullName,
		Biography: r.Biography,
		Category:  firstNonEmpty(r.Category, r.CategoryNm),
		Followers: r.Followers.ptr(),
	}
	if p.Followers == nil {
		p.Followers = r.FollowerCnt.ptr()
	}

	emails := make([]string, 0, len(r.Emails)+2)
	emails = append(emails, r.Emails...)
	for _, e := range []string{r.Email, r.PublicEmail} {
		if strings.TrimSpace(e) != "" {
			emails = append(emails, e)
		}
	}
	p.Emails = emails
	return p
}

var errUnexpectedShape = errors.New("unexpected discovery response shape")

// decodeProfiles accepts {"results":[...]}, {"leads":[...]} or a bare array.
// Entries without any identifier are dropped.
func decodeProfiles(body []byte) ([]Profile, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errUnexpectedShape
	}

	var items []rawProfile
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
	case '{':
		var envelope struct {
			Results *[]rawProfile `json:"results"`
			Leads   *[]rawProfile `json:"leads"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		switch {
		case envelope.Results != nil:
			items = *envelope.Results
		case envelope.Leads != nil:
			items = *envelope.Leads
		default:
			return nil, errUnexpectedShape
		}
	default:
		return nil, errUnexpectedShape
	}

	out := make([]Profile, 0, len(items))
	for _, item := range items {
		p := item.toProfile()
		if p.ID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// flexString decodes a JSON string or number into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string. Anything unparseable is
// treated as unknown rather than an error.
type flexInt struct {
	value int64
	set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	text = strings.ReplaceAll(text, ",", "")
	if text == "" || text == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		f.value, f.set = n, true
		return nil
	}
	if fl, err := strconv.ParseFloat(text, 64); err == nil {
		f.value, f.set = int64(fl), true
	}
	return nil
}

func (f flexInt) ptr() *int64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
