package dispatch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/validation"
)

const defaultValidatorConcurrency = 10

// Checker is the part of a session client the validator needs.
type Checker interface {
	IsRegisteredUser(ctx context.Context, recipient string) (bool, error)
}

// Partition splits recipients by whether they exist on the network. Every
// input appears in exactly one list, in input order.
type Partition struct {
	Valid   []string `json:"valid"`
	Invalid []string `json:"invalid"`
}

type Validator struct {
	suffix      string
	concurrency int
}

// NewValidator returns a validator that qualifies bare numbers with suffix,
// for example "@s.whatsapp.net", and runs at most concurrency checks at once.
func NewValidator(suffix string, concurrency int) *Validator {
	if concurrency <= 0 {
		concurrency = defaultValidatorConcurrency
	}
	return &Validator{suffix: suffix, concurrency: concurrency}
}

// Format qualifies a recipient with the network suffix unless it already
// carries a domain.
func (v *Validator) Format(recipient string) string {
	r := strings.TrimSpace(recipient)
	if strings.Contains(r, "@") {
		return r
	}
	return strings.TrimPrefix(r, "+") + v.suffix
}

// CheckMany checks every recipient concurrently. Malformed recipients and
// failed checks count as invalid instead of aborting the rest.
func (v *Validator) CheckMany(ctx context.Context, checker Checker, recipients []string) Partition {
	ok := make([]bool, len(recipients))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, recipient := range recipients {
		if err := validation.ValidateRecipient(recipient); err != nil {
			continue
		}
		g.Go(func() error {
			registered, err := checker.IsRegisteredUser(gctx, v.Format(recipient))
			if err != nil {
				log.Logger().WithField("recipient", recipient).WithError(err).Debug("Recipient check failed")
				return nil
			}
			ok[i] = registered
			return nil
		})
	}
	_ = g.Wait()

	part := Partition{Valid: []string{}, Invalid: []string{}}
	for i, recipient := range recipients {
		if ok[i] {
			part.Valid = append(part.Valid, recipient)
		} else {
			part.Invalid = append(part.Invalid, recipient)
		}
	}
	return part
}
