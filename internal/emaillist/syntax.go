package emaillist

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/nao1215/bulkverify/internal/model"
)

// Local verdict values for addresses rejected by Precheck.
const (
	StatusInvalid       = "invalid"
	ReasonInvalidSyntax = "Invalid syntax"
)

// ErrResultCount is returned by Merge when the backend returned a different
// number of results than addresses were sent.
var ErrResultCount = errors.New("result count does not match submitted addresses")

var (
	localPart = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+$`)

	// domainPart accepts LDH labels with an alphabetic or punycode TLD.
	domainPart = regexp.MustCompile(`^[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.([a-zA-Z]{2,}|xn--[a-zA-Z0-9\-]+)$`)
)

// ValidSyntax reports whether email is syntactically acceptable.
// The domain is converted to its ASCII (punycode) form first, so
// internationalized domains are checked the way DNS will see them.
func ValidSyntax(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return false
	}
	if local == "" || strings.HasPrefix(local, ".") || !localPart.MatchString(local) {
		return false
	}

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil || strings.HasPrefix(ascii, "-") {
		return false
	}
	return domainPart.MatchString(ascii)
}

// Checked is an email list split by the local syntax check.
type Checked struct {
	// Accepted are the addresses to send to the backend, in input order.
	Accepted []string

	// Rejected maps input positions to their local verdicts.
	Rejected map[int]model.Result

	positions []int
	total     int
}

// Precheck runs ValidSyntax over emails.
func Precheck(emails []string) *Checked {
	c := &Checked{
		Accepted:  make([]string, 0, len(emails)),
		Rejected:  make(map[int]model.Result),
		positions: make([]int, 0, len(emails)),
		total:     len(emails),
	}

	for i, email := range emails {
		if ValidSyntax(email) {
			c.Accepted = append(c.Accepted, email)
			c.positions = append(c.positions, i)
			continue
		}
		c.Rejected[i] = model.Result{
			Email:  email,
			Status: StatusInvalid,
			Reason: ReasonInvalidSyntax,
		}
	}

	return c
}

// Merge interleaves backend results for Accepted with the local rejections,
// restoring the input order.
func (c *Checked) Merge(results []model.Result) ([]model.Result, error) {
	if len(results) != len(c.Accepted) {
		return nil, fmt.Errorf("%w: sent %d, received %d", ErrResultCount, len(c.Accepted), len(results))
	}

	merged := make([]model.Result, c.total)
	for i, r := range results {
		merged[c.positions[i]] = r
	}
	for i, r := range c.Rejected {
		merged[i] = r
	}
	return merged, nil
}
