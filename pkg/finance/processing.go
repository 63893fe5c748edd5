// Package finance provides the timing and return calculations shared by the
// cash-flow and viability engines.
package finance

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/iwvelando/otica-forecast/pkg/constants"
	"github.com/iwvelando/otica-forecast/pkg/mathutil"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Profile spreads a supplier purchase over the months following it. Shares are
// percentages indexed by lag: Shares[0] is paid in the purchase month,
// Shares[1] one month later and so on.
type Profile struct {
	Name   string    `json:"name" yaml:"name"`
	Shares []float64 `json:"shares" yaml:"shares"`
}

var standardProfiles = map[string][]float64{
	"cash":     {100},
	"30d":      {0, 100},
	"45d":      {0, 50, 50},
	"60d":      {0, 0, 100},
	"30_60":    {0, 80, 20},
	"30_60_90": {0, 33.34, 33.33, 33.33},
}

var customProfilePattern = regexp.MustCompile(`^custom\s*[\(:]\s*([^\)]*)\)?$`)

// CashProfile returns the pay-on-purchase profile.
func CashProfile() Profile {
	return Profile{Name: "cash", Shares: []float64{100}}
}

// ParseProfile parses "cash", "30d", "45d", "60d", "30_60", "30_60_90" and
// "custom(m0,m1,m2)". The result is not validated; see Validate.
func ParseProfile(s string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return CashProfile(), nil
	}
	if shares, ok := standardProfiles[key]; ok {
		out := make([]float64, len(shares))
		copy(out, shares)
		return Profile{Name: key, Shares: out}, nil
	}

	match := customProfilePattern.FindStringSubmatch(key)
	if match == nil {
		return Profile{}, fmt.Errorf("unknown payment profile %q", s)
	}
	fields := strings.Split(match[1], ",")
	shares := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Profile{}, fmt.Errorf("invalid share %q in payment profile %q: %w", f, s, err)
		}
		shares = append(shares, v)
	}
	if len(shares) == 0 {
		return Profile{}, fmt.Errorf("payment profile %q has no shares", s)
	}
	return Profile{Name: "custom", Shares: shares}, nil
}

// String renders the profile the way ParseProfile reads it.
func (p Profile) String() string {
	if p.Name == "" && len(p.Shares) == 0 {
		return ""
	}
	if p.Name != "custom" && p.Name != "" {
		return p.Name
	}
	parts := make([]string, len(p.Shares))
	for i, s := range p.Shares {
		parts[i] = strconv.FormatFloat(s, 'f', -1, 64)
	}
	return "custom(" + strings.Join(parts, ",") + ")"
}

// Sum returns the total of the shares.
func (p Profile) Sum() float64 {
	return mathutil.Sum(p.Shares)
}

// Validate checks that shares are non-negative and add up to 100.
func (p Profile) Validate() error {
	if len(p.Shares) == 0 {
		return fmt.Errorf("payment profile %s has no shares", p)
	}
	for i, s := range p.Shares {
		if s < 0 || math.IsNaN(s) {
			return fmt.Errorf("payment profile %s has a negative share at month %d", p, i)
		}
	}
	if sum := p.Sum(); !mathutil.WithinTolerance(sum, 100, constants.ProfileSumTolerance) {
		return fmt.Errorf("payment profile %s shares add up to %.4f, expected 100", p, sum)
	}
	return nil
}

// ReceivableLag maps the days a card acquirer takes to settle into the number
// of months before the money lands.
func ReceivableLag(days int) int {
	switch {
	case days <= 30:
		return 1
	case days <= 60:
		return 2
	default:
		return 3
	}
}

// Ledger rolls deferred amounts forward over a fixed horizon of months.
// Amounts that fall after the horizon are kept as outstanding.
type Ledger struct {
	logger      *zap.Logger
	name        string
	due         []float64
	outstanding float64
}

// NewLedger creates a ledger for months 1..horizon.
func NewLedger(logger *zap.Logger, name string, horizon int) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if horizon < 0 {
		horizon = 0
	}
	return &Ledger{logger: logger, name: name, due: make([]float64, horizon)}
}

// PostLagged schedules amount to be settled lag months after month.
func (l *Ledger) PostLagged(month, lag int, amount float64) {
	target := month + lag
	if target < 1 {
		target = 1
	}
	if target > len(l.due) {
		l.outstanding += amount
		l.logger.Debug(fmt.Sprintf("%s: %.2f from month %d settles after the horizon", l.name, amount, month),
			zap.String("op", "finance.Ledger.PostLagged"),
		)
		return
	}
	l.due[target-1] += amount
}

// Post spreads amount from month over the following months using the
// percentage shares of a profile.
func (l *Ledger) Post(month int, amount float64, shares []float64) {
	for lag, share := range shares {
		if share == 0 {
			continue
		}
		l.PostLagged(month, lag, mathutil.ApplyPercentage(amount, share))
	}
}

// Due returns the amount settled in month (1-based).
func (l *Ledger) Due(month int) float64 {
	if month < 1 || month > len(l.due) {
		return 0
	}
	return l.due[month-1]
}

// Outstanding returns what settles after the horizon.
func (l *Ledger) Outstanding() float64 {
	return l.outstanding
}

// Total returns everything posted, inside and after the horizon.
func (l *Ledger) Total() float64 {
	total := l.outstanding
	for _, v := range l.due {
		total += v
	}
	return total
}

// MarshalJSON renders the profile as its string form.
func (p Profile) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the string form ("30_60", "custom(20,50,30)")
// or an object with name and shares. An unparseable string yields a profile
// with no shares so validation can report it.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*p = ProfileFromString(raw)
		return nil
	}
	type plain Profile
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid payment profile: %w", err)
	}
	*p = Profile(obj)
	return nil
}

// MarshalYAML renders the profile as its string form.
func (p Profile) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// ProfileFromString parses s, keeping an unparseable value as a named profile
// without shares.
func ProfileFromString(s string) Profile {
	p, err := ParseProfile(s)
	if err != nil {
		return Profile{Name: strings.TrimSpace(s)}
	}
	return p
}
