// Package canonical converges free text and captured-list scrape payloads into
// one CreditReport.
package canonical

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/parser"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

var ErrUnsupportedInput = errors.New("unsupported report input")

// Input is the tagged union of shapes the builder accepts: CapturedLists or RawText.
type Input interface {
	kind() string
}

// CapturedLists is the scraping robot's payload, keyed by loosely worded list labels.
type CapturedLists map[string]json.RawMessage

func (CapturedLists) kind() string { return entity.SourceScrape }

// RawText is text already extracted from a report document.
type RawText struct {
	Text string
}

func (RawText) kind() string { return entity.SourceText }

// Result is a built report plus what was learned while building it.
type Result struct {
	Report *entity.CreditReport
	// Parse is set for RawText input only.
	Parse      *parser.ParseResult
	Confidence *int
	Warnings   []string
}

// RowCounts derives the normalized row counts written for this report.
func (r *Result) RowCounts() entity.RowCounts {
	scores, accounts := len(r.Report.Scores), r.Report.Accounts.Len()
	reports := 0
	if r.Report.EntityCount() > 0 {
		reports = 1
	}
	return entity.RowCounts{
		Reports:  reports,
		Scores:   scores,
		Accounts: accounts,
		Entities: r.Report.EntityCount() - scores - accounts,
	}
}

// Build produces the canonical report for (runID, userID) from either input shape.
func Build(runID, userID string, collectedAt time.Time, in Input) (*Result, error) {
	report := entity.NewCreditReport(runID, userID, collectedAt)
	switch v := in.(type) {
	case CapturedLists:
		return buildCaptured(report, v), nil
	case RawText:
		return buildText(report, v), nil
	case *RawText:
		if v != nil {
			return buildText(report, *v), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedInput, in)
}

func buildCaptured(report *entity.CreditReport, lists CapturedLists) *Result {
	res := &Result{Report: report, Warnings: []string{}}

	keys := make([]string, 0, len(lists))
	for k := range lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := lists[key]
		report.RawSections[key] = raw

		section, ok := Canonicalize(key)
		if !ok {
			report.Additional[key] = raw
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			report.Additional[key] = raw
			res.Warnings = append(res.Warnings, fmt.Sprintf("captured list %q is not an array", key))
			continue
		}
		for _, e := range entries {
			it, ok := decodeItem(e, sectionLen(report, section)+1)
			if !ok {
				continue
			}
			addItem(report, section, it)
		}
	}
	return res
}

func sectionLen(r *entity.CreditReport, section string) int {
	switch section {
	case SectionScores:
		return len(r.Scores)
	case SectionPersonalInformation:
		return len(r.PersonalInformation)
	case SectionConsumerStatements:
		return len(r.ConsumerStatements)
	case SectionRealEstate:
		return len(r.Accounts.RealEstate)
	case SectionRevolving:
		return len(r.Accounts.Revolving)
	case SectionOtherAccounts:
		return len(r.Accounts.Other)
	case SectionPublicRecords:
		return len(r.PublicRecords)
	case SectionCollections:
		return len(r.Collections)
	case SectionInquiries:
		return len(r.Inquiries)
	case SectionCreditorAddresses:
		return len(r.CreditorAddresses)
	}
	return 0
}

func addItem(r *entity.CreditReport, section string, it item) {
	switch section {
	case SectionScores:
		r.Scores = append(r.Scores, scoreFrom(it))
	case SectionPersonalInformation:
		r.PersonalInformation = append(r.PersonalInformation, personalFrom(it))
	case SectionConsumerStatements:
		r.ConsumerStatements = append(r.ConsumerStatements, statementFrom(it))
	case SectionRealEstate:
		r.Accounts.Add(accountFrom(it, entity.CategoryRealEstate))
	case SectionRevolving:
		r.Accounts.Add(accountFrom(it, entity.CategoryRevolving))
	case SectionOtherAccounts:
		r.Accounts.Add(accountFrom(it, entity.CategoryOther))
	case SectionPublicRecords:
		r.PublicRecords = append(r.PublicRecords, publicRecordFrom(it))
	case SectionCollections:
		r.Collections = append(r.Collections, collectionFrom(it))
	case SectionInquiries:
		r.Inquiries = append(r.Inquiries, inquiryFrom(it))
	case SectionCreditorAddresses:
		r.CreditorAddresses = append(r.CreditorAddresses, addressFrom(it))
	}
}

// scoreFrom scans the whole entry for a score token and a bureau name
// independently. An entry without a bureau name keeps bureau "".
func scoreFrom(it item) entity.Score {
	text := it.allText()
	bureau := normalize.Bureau(it.get("bureau", "bureauName", "agency"))
	if bureau == "" {
		bureau = normalize.Bureau(text)
	}
	score := normalize.Score(it.get("score", "creditScore", "value"))
	if score == nil {
		score = normalize.Score(text)
	}
	return entity.Score{Bureau: bureau, Score: score, Status: it.status, Position: it.position}
}

var personalAliases = []struct {
	field   string
	aliases []string
}{
	{parser.FieldName, []string{"name", "consumerName", "fullName"}},
	{parser.FieldAlsoKnownAs, []string{"alsoKnownAs", "aka", "otherNames"}},
	{parser.FieldDateOfBirth, []string{"dateOfBirth", "dob", "birthDate", "yearOfBirth"}},
	{parser.FieldSSN, []string{"ssn", "socialSecurityNumber", "socialSecurity"}},
	{parser.FieldCurrentAddress, []string{"currentAddress", "address", "currentAddresses"}},
	{parser.FieldPreviousAddresses, []string{"previousAddresses", "previousAddress", "formerAddresses"}},
	{parser.FieldEmployer, []string{"employer", "employers"}},
	{parser.FieldPhone, []string{"phone", "phoneNumber", "telephone"}},
	{parser.FieldReportDate, []string{"reportDate", "dateOfReport"}},
}

func personalFrom(it item) entity.PersonalInformationBlock {
	fields := map[string]*string{}
	used := map[string]bool{}
	for _, pa := range personalAliases {
		for _, a := range pa.aliases {
			nk := normalize.Key(a)
			if v, ok := it.fields[nk]; ok {
				used[nk] = true
				if _, set := fields[pa.field]; !set || fields[pa.field] == nil {
					fields[pa.field] = normalize.NullableText(v)
				}
			}
		}
	}
	if ssn := fields[parser.FieldSSN]; ssn != nil {
		masked := maskSSN(*ssn)
		fields[parser.FieldSSN] = &masked
	}
	// Bureau-specific identity fields are kept under their own names.
	for _, k := range it.keys {
		if nk := normalize.Key(k); !used[nk] {
			fields[k] = normalize.NullableText(it.values[k])
		}
	}
	if it.text != "" {
		fields["text"] = normalize.NullableText(it.text)
	}
	return entity.PersonalInformationBlock{Position: it.position, Status: it.status, Fields: fields}
}

func maskSSN(v string) string {
	digits := make([]rune, 0, 9)
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return v
	}
	return "XXX-XX-" + string(digits[len(digits)-4:])
}

func statementFrom(it item) entity.ConsumerStatement {
	text := it.text
	if text == "" {
		text = it.get("statement", "consumerStatement", "text", "value")
	}
	return entity.ConsumerStatement{
		Bureau:    normalize.Bureau(it.get("bureau")),
		Statement: normalize.Statement(text),
		Status:    it.status,
		Position:  it.position,
	}
}

func accountFrom(it item, category string) entity.Account {
	accountType := it.str("accountType", "typeOfAccount", "loanType", "type")
	creditor := it.str("creditor", "creditorName", "accountName", "name", "company", "lender", "subscriber")
	if creditor == "" {
		creditor = normalize.Text(it.text)
	}
	var rem []string
	if v := normalize.NullableText(it.get("remarks", "remark", "comments", "comment")); v != nil {
		rem = []string{*v}
	} else {
		rem = []string{}
	}
	return entity.Account{
		Bureau:            normalize.Bureau(it.get("bureau")),
		Creditor:          creditor,
		AccountNumberMask: parser.MaskAccountNumber(it.get("accountNumber", "accountNo", "acctNumber", "account", "number")),
		AccountType:       accountType,
		Balance:           it.money("balance", "currentBalance", "balanceOwed", "amountOwed"),
		HighBalance:       it.money("highBalance", "highCredit", "highestBalance"),
		CreditLimit:       it.money("creditLimit", "limit"),
		OpenedOn:          it.date("dateOpened", "opened", "openDate", "openedOn"),
		ReportedOn:        it.date("dateReported", "lastReported", "reported", "reportedOn"),
		ClosedOn:          it.date("dateClosed", "closed", "closedOn"),
		LastActivityOn:    it.date("lastActivity", "dateOfLastActivity", "dateOfLastPayment", "lastPayment"),
		AccountStatus:     it.str("accountStatus", "status", "condition"),
		PaymentStatus:     it.str("paymentStatus", "payStatus", "currentRating", "paymentRating"),
		PastDue:           it.money("pastDue", "amountPastDue", "pastDueAmount"),
		Remarks:           rem,
		Category:          category,
		Negative:          parser.IsNegative(it.allText()),
		Position:          it.position,
	}
}

func publicRecordFrom(it item) entity.PublicRecord {
	return entity.PublicRecord{
		Bureau:     normalize.Bureau(it.get("bureau")),
		Kind:       it.str("type", "recordType", "classification", "kind"),
		Court:      it.str("court", "courtName"),
		Reference:  it.str("referenceNumber", "reference", "docketNumber", "caseNumber"),
		FiledOn:    it.date("dateFiled", "filed", "filingDate"),
		ResolvedOn: it.date("dateResolved", "resolved", "dateSatisfied", "satisfied"),
		Amount:     it.money("amount", "liability", "liabilityAmount"),
		Status:     it.str("status", "disposition"),
		Position:   it.position,
	}
}

func collectionFrom(it item) entity.Collection {
	agency := it.str("collectionAgency", "agency", "agencyName", "creditorName", "creditor", "company", "name")
	if agency == "" {
		agency = normalize.Text(it.text)
	}
	var rem []string
	if v := normalize.NullableText(it.get("remarks", "comments")); v != nil {
		rem = []string{*v}
	} else {
		rem = []string{}
	}
	return entity.Collection{
		Bureau:            normalize.Bureau(it.get("bureau")),
		Agency:            agency,
		OriginalCreditor:  it.str("originalCreditor", "originalCreditorName"),
		AccountNumberMask: parser.MaskAccountNumber(it.get("accountNumber", "accountNo", "account")),
		Balance:           it.money("balance", "currentBalance", "amount"),
		OriginalAmount:    it.money("originalAmount", "originalBalance", "amountPlaced"),
		OpenedOn:          it.date("dateAssigned", "dateOpened", "assigned", "opened"),
		ReportedOn:        it.date("dateReported", "reported", "lastReported"),
		Status:            it.str("status", "collectionStatus", "accountStatus"),
		Remarks:           rem,
		Position:          it.position,
	}
}

func inquiryFrom(it item) entity.Inquiry {
	creditor := it.str("creditorName", "creditor", "companyName", "company", "inquirer", "name")
	if creditor == "" {
		creditor = normalize.Text(it.text)
	}
	kind := strings.ToLower(it.str("type", "inquiryType", "kind"))
	switch {
	case strings.Contains(kind, "soft"), strings.Contains(kind, "promotional"):
		kind = "soft"
	case kind != "":
		kind = "hard"
	}
	return entity.Inquiry{
		Bureau:     normalize.Bureau(it.get("bureau")),
		Creditor:   creditor,
		InquiredOn: it.date("dateOfInquiry", "inquiryDate", "date", "inquiredOn"),
		Kind:       kind,
		Position:   it.position,
	}
}

func addressFrom(it item) entity.CreditorAddress {
	creditor := it.str("creditorName", "creditor", "name", "company")
	address := it.str("address", "mailingAddress", "creditorAddress")
	if creditor == "" && address == "" {
		address = normalize.Text(it.text)
	}
	return entity.CreditorAddress{
		Creditor: creditor,
		Address:  address,
		Phone:    it.str("phone", "phoneNumber", "telephone"),
		Position: it.position,
	}
}

func buildText(report *entity.CreditReport, in RawText) *Result {
	pr := parser.Parse(in.Text)
	res := &Result{Report: report, Parse: pr, Warnings: append([]string{}, pr.Warnings...)}
	res.Warnings = append(res.Warnings, pr.Errors...)
	conf := pr.ConfidenceScore
	res.Confidence = &conf

	text, _ := json.Marshal(in.Text)
	report.RawSections["text"] = text
	if det, err := json.Marshal(pr.Bureau); err == nil {
		report.Additional["bureauDetection"] = det
	}

	bureau := pr.Bureau.Name
	if bureau == entity.BureauUnknown {
		bureau = ""
	}
	report.Scores = append(report.Scores, pr.Scores...)
	if hasAny(pr.PersonalInfo) {
		report.PersonalInformation = append(report.PersonalInformation, entity.PersonalInformationBlock{
			Position: 1,
			Fields:   pr.PersonalInfo,
		})
	}
	if bureau != "" || pr.ConsumerStatement != entity.NoneReported {
		report.ConsumerStatements = append(report.ConsumerStatements, entity.ConsumerStatement{
			Bureau:    bureau,
			Statement: pr.ConsumerStatement,
			Position:  1,
		})
	}
	for _, acc := range pr.Accounts {
		report.Accounts.Add(acc)
	}
	report.Collections = append(report.Collections, pr.Collections...)
	report.PublicRecords = append(report.PublicRecords, pr.PublicRecords...)
	report.Inquiries = append(report.Inquiries, pr.Inquiries...)
	return res
}

func hasAny(fields map[string]*string) bool {
	for _, v := range fields {
		if v != nil {
			return true
		}
	}
	return false
}
