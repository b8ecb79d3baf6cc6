// Package proxymode models the single piece of process-wide dynamic
// dispatch in apiproxy: which entity kind (creditors, debtors, or
// accounts) this process was started to serve. Mode is built once at
// startup from the environment and never changes across config
// reloads.
package proxymode

import (
	"fmt"
	"regexp"

	"github.com/dreamware/apiproxy/internal/intid"
)

// Kind identifies which entity kind a Mode serves.
type Kind int

const (
	Creditors Kind = iota
	Debtors
	Accounts
)

func (k Kind) String() string {
	switch k {
	case Creditors:
		return "creditors"
	case Debtors:
		return "debtors"
	case Accounts:
		return "accounts"
	default:
		return "unknown"
	}
}

// Mode carries every mode-specific piece of routing data: which paths
// are sharded/global/enumerate/reserve, how to build an enumerate page
// URL, and the reservation id interval. There is no class hierarchy
// here on purpose — Mode is a flat tagged variant, and every method
// below just branches on fields that are nil/empty for the kinds that
// don't have them (Accounts has no global/enumerate/reserve surface).
type Mode struct {
	Kind Kind

	entitySegment string

	ShardedPathRegexp   *regexp.Regexp
	GlobalPathRegexp    *regexp.Regexp
	EnumeratePathRegexp *regexp.Regexp

	InvalidPath     string
	ReservePath     string
	ReservationType string

	MinID  int64
	MaxID  int64
	NumIDs int
}

// Getenv matches os.Getenv's signature; FromEnv takes it as a
// parameter so tests can supply a fake environment.
type Getenv func(key string) string

// FromEnv builds the process Mode from the four MIN/MAX_*_ID
// environment variables, per the table in the external-interfaces
// specification. It is a fatal startup error to set either pair
// partially, or to set both pairs.
func FromEnv(getenv Getenv) (*Mode, error) {
	cMin, cMinSet := lookup(getenv, "MIN_CREDITOR_ID")
	cMax, cMaxSet := lookup(getenv, "MAX_CREDITOR_ID")
	dMin, dMinSet := lookup(getenv, "MIN_DEBTOR_ID")
	dMax, dMaxSet := lookup(getenv, "MAX_DEBTOR_ID")

	if cMinSet != cMaxSet {
		return nil, fmt.Errorf("proxymode: MIN_CREDITOR_ID and MAX_CREDITOR_ID must both be set, or neither")
	}
	if dMinSet != dMaxSet {
		return nil, fmt.Errorf("proxymode: MIN_DEBTOR_ID and MAX_DEBTOR_ID must both be set, or neither")
	}

	creditorsSet := cMinSet && cMaxSet
	debtorsSet := dMinSet && dMaxSet

	if creditorsSet && debtorsSet {
		return nil, fmt.Errorf("proxymode: cannot set both creditor and debtor id ranges")
	}

	switch {
	case creditorsSet:
		min, err := intid.ParseI64(cMin)
		if err != nil {
			return nil, fmt.Errorf("proxymode: MIN_CREDITOR_ID: %w", err)
		}
		max, err := intid.ParseI64(cMax)
		if err != nil {
			return nil, fmt.Errorf("proxymode: MAX_CREDITOR_ID: %w", err)
		}
		return newCreditors(min, max)
	case debtorsSet:
		min, err := intid.ParseI64(dMin)
		if err != nil {
			return nil, fmt.Errorf("proxymode: MIN_DEBTOR_ID: %w", err)
		}
		max, err := intid.ParseI64(dMax)
		if err != nil {
			return nil, fmt.Errorf("proxymode: MAX_DEBTOR_ID: %w", err)
		}
		return newDebtors(min, max)
	default:
		return newAccounts(), nil
	}
}

func lookup(getenv Getenv, key string) (string, bool) {
	v := getenv(key)
	return v, v != ""
}

func newCreditors(min, max int64) (*Mode, error) {
	if min > max {
		return nil, fmt.Errorf("proxymode: MIN_CREDITOR_ID (%d) > MAX_CREDITOR_ID (%d)", min, max)
	}
	return &Mode{
		Kind:                Creditors,
		entitySegment:       "creditors",
		ShardedPathRegexp:   regexp.MustCompile(`^/creditors/(\d{1,20})/`),
		GlobalPathRegexp:    regexp.MustCompile(`^/creditors/\.(wallet|list)$`),
		EnumeratePathRegexp: regexp.MustCompile(`^/creditors/(\d{1,20})/enumerate$`),
		InvalidPath:         "/creditors/.invalid-path",
		ReservePath:         "/creditors/.creditor-reserve",
		ReservationType:     "CreditorReservationRequest",
		MinID:               min,
		MaxID:               max,
		NumIDs:              1,
	}, nil
}

func newDebtors(min, max int64) (*Mode, error) {
	if min > max {
		return nil, fmt.Errorf("proxymode: MIN_DEBTOR_ID (%d) > MAX_DEBTOR_ID (%d)", min, max)
	}
	return &Mode{
		Kind:                Debtors,
		entitySegment:       "debtors",
		ShardedPathRegexp:   regexp.MustCompile(`^/debtors/(\d{1,20})/`),
		GlobalPathRegexp:    regexp.MustCompile(`^/debtors/\.(debtor|list)$`),
		EnumeratePathRegexp: regexp.MustCompile(`^/debtors/(\d{1,20})/enumerate$`),
		InvalidPath:         "/debtors/.invalid-path",
		ReservePath:         "/debtors/.debtor-reserve",
		ReservationType:     "DebtorReservationRequest",
		MinID:               min,
		MaxID:               max,
		NumIDs:              1,
	}, nil
}

func newAccounts() *Mode {
	return &Mode{
		Kind:              Accounts,
		entitySegment:     "accounts",
		ShardedPathRegexp: regexp.MustCompile(`^/accounts/(\d{1,20})/(\d{1,20})/`),
		NumIDs:            2,
	}
}

// HasGlobal reports whether this mode has a global-path surface.
func (m *Mode) HasGlobal() bool { return m.GlobalPathRegexp != nil }

// HasEnumerate reports whether this mode has an enumerate-path surface.
func (m *Mode) HasEnumerate() bool { return m.EnumeratePathRegexp != nil }

// HasReserve reports whether this mode has a reserve-path surface.
func (m *Mode) HasReserve() bool { return m.ReservePath != "" }

// BuildEnumeratePath renders the next-page enumerate URL for a given
// decimal entity id and config version, e.g.
// "/creditors/9223372036854775807/enumerate?v=abcd1234".
func (m *Mode) BuildEnumeratePath(idDec, version string) string {
	return "/" + m.entitySegment + "/" + idDec + "/enumerate?v=" + version
}

// BuildReservePath renders the canonical resource path a reserve
// attempt POSTs to for a drawn decimal entity id, e.g.
// "/creditors/9223372036854775807".
func (m *Mode) BuildReservePath(idDec string) string {
	return "/" + m.entitySegment + "/" + idDec
}
