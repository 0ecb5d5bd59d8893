package entity

import (
	"encoding/json"
	"time"
)

// SchemaVersion tags every stored CreditReport document.
const SchemaVersion = "credit-report/v1"

// Bureau names as they appear in canonical records.
const (
	BureauEquifax    = "Equifax"
	BureauExperian   = "Experian"
	BureauTransUnion = "TransUnion"
	BureauUnknown    = "Unknown"
)

// RequiredBureaus lists the bureaus a complete scrape must carry a score for.
var RequiredBureaus = []string{BureauEquifax, BureauExperian, BureauTransUnion}

// NoneReported marks a consumer statement the bureau explicitly left empty.
const NoneReported = "NONE REPORTED"

// Account categories.
const (
	CategoryRealEstate = "realEstate"
	CategoryRevolving  = "revolving"
	CategoryOther      = "other"
)

// CreditReport is the canonical aggregate for one (RunID, UserID) ingestion.
type CreditReport struct {
	RunID               string                     `json:"runId"`
	UserID              string                     `json:"userId"`
	CollectedAt         time.Time                  `json:"collectedAt"`
	Version             string                     `json:"version"`
	Scores              []Score                    `json:"scores"`
	PersonalInformation []PersonalInformationBlock `json:"personalInformation"`
	ConsumerStatements  []ConsumerStatement        `json:"consumerStatements"`
	Accounts            Accounts                   `json:"accounts"`
	PublicRecords       []PublicRecord             `json:"publicRecords"`
	Collections         []Collection               `json:"collections"`
	Inquiries           []Inquiry                  `json:"inquiries"`
	CreditorAddresses   []CreditorAddress          `json:"creditorAddresses"`
	RawSections         map[string]json.RawMessage `json:"rawSections"`
	Additional          map[string]json.RawMessage `json:"additional"`
}

// Accounts groups tradelines by category.
type Accounts struct {
	RealEstate []Account `json:"realEstate"`
	Revolving  []Account `json:"revolving"`
	Other      []Account `json:"other"`
}

// All returns every account across categories in a stable order.
func (a Accounts) All() []Account {
	out := make([]Account, 0, len(a.RealEstate)+len(a.Revolving)+len(a.Other))
	out = append(out, a.RealEstate...)
	out = append(out, a.Revolving...)
	return append(out, a.Other...)
}

// Len is the total number of accounts.
func (a Accounts) Len() int { return len(a.RealEstate) + len(a.Revolving) + len(a.Other) }

// Add appends acc to the bucket named by its Category, defaulting to other.
func (a *Accounts) Add(acc Account) {
	switch acc.Category {
	case CategoryRealEstate:
		a.RealEstate = append(a.RealEstate, acc)
	case CategoryRevolving:
		a.Revolving = append(a.Revolving, acc)
	default:
		acc.Category = CategoryOther
		a.Other = append(a.Other, acc)
	}
}

// Score is one bureau score. Value is nil or within 300–850.
type Score struct {
	Bureau   string `json:"bureau"`
	Score    *int   `json:"score"`
	Status   string `json:"status"`
	Position int    `json:"position"`
}

// Account is a single tradeline.
type Account struct {
	Bureau            string     `json:"bureau"`
	Creditor          string     `json:"creditor"`
	AccountNumberMask string     `json:"accountNumberMask"`
	AccountType       string     `json:"accountType,omitempty"`
	Balance           *float64   `json:"balance"`
	HighBalance       *float64   `json:"highBalance"`
	CreditLimit       *float64   `json:"creditLimit"`
	OpenedOn          *time.Time `json:"openedOn"`
	ReportedOn        *time.Time `json:"reportedOn"`
	ClosedOn          *time.Time `json:"closedOn"`
	LastActivityOn    *time.Time `json:"lastActivityOn"`
	AccountStatus     string     `json:"accountStatus"`
	PaymentStatus     string     `json:"paymentStatus"`
	PastDue           *float64   `json:"pastDue"`
	Remarks           []string   `json:"remarks"`
	Category          string     `json:"category"`
	Negative          bool       `json:"negative"`
	Position          int        `json:"position,omitempty"`
}

// PersonalInformationBlock keeps whatever identity fields a bureau reported.
type PersonalInformationBlock struct {
	Position int                `json:"position"`
	Status   string             `json:"status"`
	Fields   map[string]*string `json:"fields"`
}

// ConsumerStatement text is never blank; see NoneReported.
type ConsumerStatement struct {
	Bureau    string `json:"bureau"`
	Statement string `json:"statement"`
	Status    string `json:"status"`
	Position  int    `json:"position"`
}

type Inquiry struct {
	Bureau     string     `json:"bureau"`
	Creditor   string     `json:"creditor"`
	InquiredOn *time.Time `json:"inquiredOn"`
	Kind       string     `json:"kind,omitempty"`
	Position   int        `json:"position,omitempty"`
}

type Collection struct {
	Bureau            string     `json:"bureau"`
	Agency            string     `json:"agency"`
	OriginalCreditor  string     `json:"originalCreditor,omitempty"`
	AccountNumberMask string     `json:"accountNumberMask,omitempty"`
	Balance           *float64   `json:"balance"`
	OriginalAmount    *float64   `json:"originalAmount"`
	OpenedOn          *time.Time `json:"openedOn"`
	ReportedOn        *time.Time `json:"reportedOn"`
	Status            string     `json:"status"`
	Remarks           []string   `json:"remarks"`
	Position          int        `json:"position,omitempty"`
}

type PublicRecord struct {
	Bureau     string     `json:"bureau"`
	Kind       string     `json:"kind"`
	Court      string     `json:"court,omitempty"`
	Reference  string     `json:"reference,omitempty"`
	FiledOn    *time.Time `json:"filedOn"`
	ResolvedOn *time.Time `json:"resolvedOn"`
	Amount     *float64   `json:"amount"`
	Status     string     `json:"status"`
	Position   int        `json:"position,omitempty"`
}

type CreditorAddress struct {
	Creditor string `json:"creditor"`
	Address  string `json:"address"`
	Phone    string `json:"phone,omitempty"`
	Position int    `json:"position,omitempty"`
}

// NewCreditReport returns an empty report with every collection initialised,
// so two empty reports serialise identically regardless of input path.
func NewCreditReport(runID, userID string, collectedAt time.Time) *CreditReport {
	return &CreditReport{
		RunID:               runID,
		UserID:              userID,
		CollectedAt:         collectedAt.UTC(),
		Version:             SchemaVersion,
		Scores:              []Score{},
		PersonalInformation: []PersonalInformationBlock{},
		ConsumerStatements:  []ConsumerStatement{},
		Accounts:            Accounts{RealEstate: []Account{}, Revolving: []Account{}, Other: []Account{}},
		PublicRecords:       []PublicRecord{},
		Collections:         []Collection{},
		Inquiries:           []Inquiry{},
		CreditorAddresses:   []CreditorAddress{},
		RawSections:         map[string]json.RawMessage{},
		Additional:          map[string]json.RawMessage{},
	}
}

// EntityCount is the number of normalized entities carried by the report.
func (r *CreditReport) EntityCount() int {
	return len(r.Scores) + len(r.PersonalInformation) + len(r.ConsumerStatements) +
		r.Accounts.Len() + len(r.PublicRecords) + len(r.Collections) +
		len(r.Inquiries) + len(r.CreditorAddresses)
}
