package parser

import (
	"regexp"
	"strings"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// Personal information field keys.
const (
	FieldName              = "name"
	FieldAlsoKnownAs       = "also_known_as"
	FieldDateOfBirth       = "date_of_birth"
	FieldSSN               = "ssn"
	FieldCurrentAddress    = "current_address"
	FieldPreviousAddresses = "previous_addresses"
	FieldEmployer          = "employer"
	FieldPhone             = "phone"
	FieldReportDate        = "report_date"
)

var personalFields = []struct {
	key      string
	matchers []matcher
}{
	{FieldName, []matcher{labeled("name", "consumer name", "full name", "report for")}},
	{FieldAlsoKnownAs, []matcher{labeled("also known as", "aka", "other names", "name variations")}},
	{FieldDateOfBirth, []matcher{labeled("date of birth", "dob", "birth date", "year of birth")}},
	{FieldSSN, []matcher{
		labeled("social security number", "social security", "ssn"),
		rx(`\b((?:X{3}|\*{3}|\d{3})-(?:X{2}|\*{2}|\d{2})-\d{4})\b`),
	}},
	{FieldCurrentAddress, []matcher{labeled("current address", "address", "residence")}},
	{FieldPreviousAddresses, []matcher{labeled("previous addresses", "previous address", "former address", "other addresses")}},
	{FieldEmployer, []matcher{labeled("employer", "employers", "current employer", "employment")}},
	{FieldPhone, []matcher{
		labeled("phone number", "telephone", "phone"),
		rx(`(\(?\d{3}\)?[\s.\-]\d{3}[\s.\-]\d{4})`),
	}},
	{FieldReportDate, []matcher{labeled("report date", "date of report", "date generated", "report generated")}},
}

var ssnDigits = regexp.MustCompile(`\d`)

// ExtractPersonalInfo returns every known identity field, nil when absent.
func ExtractPersonalInfo(section string) map[string]*string {
	out := make(map[string]*string, len(personalFields))
	for _, f := range personalFields {
		v, ok := firstMatch(section, f.matchers)
		if !ok {
			out[f.key] = nil
			continue
		}
		if f.key == FieldSSN {
			v = maskSSN(v)
		}
		out[f.key] = normalize.NullableText(v)
	}
	return out
}

// maskSSN keeps only the last four digits.
func maskSSN(v string) string {
	digits := strings.Join(ssnDigits.FindAllString(v, -1), "")
	if len(digits) < 4 {
		return ""
	}
	return "XXX-XX-" + digits[len(digits)-4:]
}

var (
	inquiryCreditorMatchers = []matcher{
		labeled("creditor name", "creditor", "company name", "company", "inquirer", "requested by"),
		firstLineName,
	}
	inquiryDateMatchers = []matcher{
		labeled("date of inquiry", "inquiry date", "inquired on", "date"),
		rx(`(` + dateShape + `)`),
	}
	inquiryLineRegex = regexp.MustCompile(`^\s*([A-Za-z0-9&.,'/\- ]{3,}?)\s{2,}(?:.*?\s)?(\d{1,2}/\d{1,2}/\d{4})\b`)
	softInquiryWords = []string{"soft", "promotional", "account review", "prequalif"}
)

// ExtractInquiries reads labelled inquiry blocks first and falls back to
// "CREDITOR    MM/DD/YYYY" rows.
func ExtractInquiries(section, bureau string) []entity.Inquiry {
	out := []entity.Inquiry{}
	for _, block := range splitGeneric(sectionBody(section)) {
		if strings.Contains(block, ":") {
			creditor := textField(block, inquiryCreditorMatchers)
			if len(creditor) > minCreditorLength {
				out = append(out, entity.Inquiry{
					Bureau:     bureau,
					Creditor:   creditor,
					InquiredOn: dateField(block, inquiryDateMatchers),
					Kind:       inquiryKind(block),
					Position:   len(out) + 1,
				})
				continue
			}
		}
		for _, line := range strings.Split(block, "\n") {
			m := inquiryLineRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			creditor := normalize.Text(m[1])
			if len(creditor) <= minCreditorLength {
				continue
			}
			out = append(out, entity.Inquiry{
				Bureau:     bureau,
				Creditor:   creditor,
				InquiredOn: normalize.Date(m[2]),
				Kind:       inquiryKind(line),
				Position:   len(out) + 1,
			})
		}
	}
	return out
}

func inquiryKind(text string) string {
	if containsAny(strings.ToLower(text), softInquiryWords) {
		return "soft"
	}
	return "hard"
}

var (
	agencyMatchers = []matcher{
		labeled("collection agency", "agency", "agency name", "creditor name", "creditor", "company"),
		firstLineName,
	}
	originalCreditorMatchers = []matcher{labeled("original creditor", "original creditor name")}
	originalAmountMatchers   = []matcher{
		labeled("original amount", "original balance", "amount placed"),
		inline(`original\s+(?:amount|balance)`, moneyShape),
	}
	assignedMatchers = []matcher{
		labeled("date assigned", "date opened", "assigned", "opened", "placed for collection"),
		inline(`(?:date\s+)?(?:assigned|opened)`, dateShape),
	}
	collectionStatusMatchers = []matcher{labeled("status", "account status", "collection status")}
)

// ExtractCollections reads one collection item per block.
func ExtractCollections(section, bureau string) []entity.Collection {
	out := []entity.Collection{}
	for _, block := range splitGeneric(sectionBody(section)) {
		agency := textField(block, agencyMatchers)
		if len(agency) <= minCreditorLength {
			continue
		}
		out = append(out, entity.Collection{
			Bureau:            bureau,
			Agency:            agency,
			OriginalCreditor:  textField(block, originalCreditorMatchers),
			AccountNumberMask: MaskAccountNumber(textField(block, accountNumberMatchers)),
			Balance:           moneyField(block, balanceMatchers),
			OriginalAmount:    moneyField(block, originalAmountMatchers),
			OpenedOn:          dateField(block, assignedMatchers),
			ReportedOn:        dateField(block, reportedMatchers),
			Status:            textField(block, collectionStatusMatchers),
			Remarks:           remarks(block),
			Position:          len(out) + 1,
		})
	}
	return out
}

var (
	recordKindMatchers = []matcher{
		labeled("record type", "public record type", "type", "classification"),
		rx(`(?i)\b(bankruptcy(?:\s+chapter\s+\d+)?|chapter\s+\d+\s+bankruptcy|civil\s+judgment|judgment|tax\s+lien|lien)\b`),
	}
	courtMatchers     = []matcher{labeled("court", "court name", "filing court")}
	referenceMatchers = []matcher{labeled("reference number", "docket number", "case number", "reference #", "reference")}
	filedMatchers     = []matcher{
		labeled("date filed", "filed", "filing date"),
		inline(`(?:date\s+)?filed`, dateShape),
	}
	resolvedMatchers = []matcher{
		labeled("date resolved", "resolved", "date satisfied", "satisfied", "discharged", "date discharged"),
	}
	recordAmountMatchers = []matcher{
		labeled("amount", "liability", "liability amount", "judgment amount"),
		inline(`(?:liability|amount)`, moneyShape),
	}
	recordStatusMatchers = []matcher{labeled("status", "disposition")}
)

// ExtractPublicRecords reads one public record per block.
func ExtractPublicRecords(section, bureau string) []entity.PublicRecord {
	out := []entity.PublicRecord{}
	for _, block := range splitGeneric(sectionBody(section)) {
		kind := textField(block, recordKindMatchers)
		if kind == "" {
			continue
		}
		out = append(out, entity.PublicRecord{
			Bureau:     bureau,
			Kind:       kind,
			Court:      textField(block, courtMatchers),
			Reference:  textField(block, referenceMatchers),
			FiledOn:    dateField(block, filedMatchers),
			ResolvedOn: dateField(block, resolvedMatchers),
			Amount:     moneyField(block, recordAmountMatchers),
			Status:     textField(block, recordStatusMatchers),
			Position:   len(out) + 1,
		})
	}
	return out
}

var consumerStatementRegex = regexp.MustCompile(`(?is)consumer\s+statements?[ \t]*:?[ \t]*(.*?)(?:\n[ \t]*\n|\z)`)

// ExtractConsumerStatement returns the statement text or the NONE REPORTED sentinel.
func ExtractConsumerStatement(text string) string {
	m := consumerStatementRegex.FindStringSubmatch(text)
	if m == nil {
		return normalize.Statement("")
	}
	return normalize.Statement(m[1])
}

// ExtractScores scans lines mentioning a score. Lines without a bureau name
// are attributed to fallbackBureau. One score per bureau is kept.
func ExtractScores(text, fallbackBureau string) []entity.Score {
	out := []entity.Score{}
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(strings.ToLower(line), "score") {
			continue
		}
		score := normalize.Score(line)
		if score == nil {
			continue
		}
		bureau := normalize.Bureau(line)
		if bureau == "" && fallbackBureau != entity.BureauUnknown {
			bureau = fallbackBureau
		}
		if seen[bureau] {
			continue
		}
		seen[bureau] = true
		out = append(out, entity.Score{Bureau: bureau, Score: score, Position: len(out) + 1})
	}
	return out
}
