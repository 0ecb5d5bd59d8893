package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/normalize"
	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

// minCreditorLength: blocks whose creditor is this short or shorter are dropped.
const minCreditorLength = 2

var (
	blankLineRegex      = regexp.MustCompile(`\n[ \t]*\n\s*`)
	ruleLineRegex       = regexp.MustCompile(`^\s*[-=_*]{5,}\s*$`)
	experianStartRegex  = regexp.MustCompile(`(?i)^\s*(?:account|creditor)\s+name\b`)
	accountNumberLine   = regexp.MustCompile(`(?i)^\s*(?:account\s+(?:number|#|no\.?)|acct\.?\s*(?:#|number|no\.?))`)
	maskedNumberLine    = regexp.MustCompile(`^\s*[0-9Xx*]{4,}[0-9Xx*\- ]*\s*$`)
	accountNumberInline = regexp.MustCompile(`(?i)account\s*(?:#|number|no\.?)`)
	maskCharsRegex      = regexp.MustCompile(`[^0-9Xx*\-]+`)
	subHeaderRegex      = regexp.MustCompile(`(?i)^[a-z &/-]*\baccounts?$`)
)

// negativeKeywords flag derogatory tradelines by case-insensitive substring.
var negativeKeywords = []string{
	"charge-off", "charge off", "charged off",
	"collection",
	"late",
	"delinquent",
	"30 days", "60 days", "90 days", "120 days",
	"past due",
	"default",
}

var realEstateKeywords = []string{"mortgage", "real estate", "home equity", "heloc"}
var revolvingKeywords = []string{"revolving", "credit card", "charge card", "line of credit"}

var (
	creditorMatchers = []matcher{
		labeled("creditor name", "creditor", "account name", "company name", "subscriber name", "lender"),
		firstLineName,
	}
	accountNumberMatchers = []matcher{
		labeled("account number", "account #", "account no.", "acct #", "acct. #", "acct number"),
		rx(`(?i)\b(?:acct|account)\s*#\s*:?\s*([0-9Xx*]{4,}[0-9Xx*\-]*)`),
	}
	accountTypeMatchers = []matcher{
		labeled("account type", "type of account", "loan type", "type"),
	}
	balanceMatchers = []matcher{
		labeled("balance", "current balance", "balance owed", "amount owed"),
		// Line start or a field separator only, so "High Balance" is not read as the balance.
		rx(`(?im)(?:^|[|,;])[ \t]*(?:current[ \t]+)?balance[ \t]*:?[ \t]*(` + moneyShape + `)`),
	}
	highBalanceMatchers = []matcher{
		labeled("high balance", "high credit", "highest balance"),
		inline(`high\s+(?:balance|credit)`, moneyShape),
	}
	creditLimitMatchers = []matcher{
		labeled("credit limit", "limit"),
		inline(`credit\s+limit`, moneyShape),
	}
	pastDueMatchers = []matcher{
		labeled("past due", "amount past due", "past due amount"),
		inline(`(?:amount\s+)?past\s+due`, moneyShape),
	}
	openedMatchers = []matcher{
		labeled("date opened", "opened", "open date"),
		inline(`(?:date\s+)?opened`, dateShape),
	}
	reportedMatchers = []matcher{
		labeled("date reported", "last reported", "reported", "date updated", "status updated"),
		inline(`(?:date\s+|last\s+)?reported`, dateShape),
	}
	closedMatchers = []matcher{
		labeled("date closed", "closed"),
		inline(`(?:date\s+)?closed`, dateShape),
	}
	lastActivityMatchers = []matcher{
		labeled("last activity", "date of last activity", "date of last payment", "last payment"),
		inline(`last\s+(?:activity|payment)`, dateShape),
	}
	accountStatusMatchers = []matcher{
		labeled("account status", "status", "condition"),
	}
	paymentStatusMatchers = []matcher{
		labeled("payment status", "pay status", "current rating", "payment rating"),
	}
	remarksRegex = regexp.MustCompile(`(?im)^[ \t]*(?:remarks?|comments?)[ \t]*:?[ \t]*([^\n]+)$`)
)

// firstLineName takes the first non-empty line that is not a "label: value" pair.
func firstLineName(block string) (string, bool) {
	for _, line := range strings.Split(block, "\n") {
		line = normalize.Text(line)
		if line == "" {
			continue
		}
		if subHeaderRegex.MatchString(line) {
			continue
		}
		if strings.Contains(line, ":") || accountNumberLine.MatchString(line) {
			return "", false
		}
		if !strings.ContainsFunc(line, unicode.IsLetter) {
			return "", false
		}
		// Trailing account numbers on the creditor line belong to another field.
		if loc := accountNumberInline.FindStringIndex(line); loc != nil {
			line = strings.TrimSpace(line[:loc[0]])
		}
		return line, line != ""
	}
	return "", false
}

// SplitAccountBlocks turns an accounts section into one block per tradeline,
// using the layout convention of the detected bureau when one is known.
func SplitAccountBlocks(section, bureau string) []string {
	var blocks []string
	switch bureau {
	case entity.BureauEquifax:
		blocks = splitOnRules(section)
	case entity.BureauExperian:
		blocks = splitBefore(section, func(lines []string, i int) bool {
			return experianStartRegex.MatchString(lines[i])
		})
	case entity.BureauTransUnion:
		blocks = splitBefore(section, transUnionStart)
	}
	if len(blocks) > 1 {
		return blocks
	}
	return splitGeneric(section)
}

func splitGeneric(section string) []string {
	blocks := nonEmpty(blankLineRegex.Split(section, -1))
	if len(blocks) > 1 {
		return blocks
	}
	// One dense block: start a new tradeline at the line above each account number.
	return splitBefore(section, func(lines []string, i int) bool {
		return i+1 < len(lines) && accountNumberLine.MatchString(lines[i+1])
	})
}

func splitOnRules(section string) []string {
	var blocks []string
	var cur []string
	for _, line := range strings.Split(section, "\n") {
		if ruleLineRegex.MatchString(line) {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	blocks = append(blocks, strings.Join(cur, "\n"))
	return nonEmpty(blocks)
}

func splitBefore(section string, isStart func(lines []string, i int) bool) []string {
	lines := strings.Split(section, "\n")
	var blocks []string
	var cur []string
	for i := range lines {
		if isStart(lines, i) && len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
		cur = append(cur, lines[i])
	}
	blocks = append(blocks, strings.Join(cur, "\n"))
	return nonEmpty(blocks)
}

// transUnionStart: an upper-case creditor line directly followed by the account number.
func transUnionStart(lines []string, i int) bool {
	line := strings.TrimSpace(lines[i])
	if len(line) < 3 || strings.Contains(line, ":") || line != strings.ToUpper(line) {
		return false
	}
	if !strings.ContainsFunc(line, unicode.IsLetter) {
		return false
	}
	for j := i + 1; j < len(lines); j++ {
		next := strings.TrimSpace(lines[j])
		if next == "" {
			continue
		}
		return accountNumberLine.MatchString(next) || maskedNumberLine.MatchString(next)
	}
	return false
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExtractAccount pulls one tradeline out of a block. ok is false when no
// usable creditor name was found.
func ExtractAccount(block, bureau string) (entity.Account, bool) {
	creditor := textField(block, creditorMatchers)
	if len(creditor) <= minCreditorLength {
		return entity.Account{}, false
	}
	accountType := textField(block, accountTypeMatchers)
	acc := entity.Account{
		Bureau:            bureau,
		Creditor:          creditor,
		AccountNumberMask: MaskAccountNumber(textField(block, accountNumberMatchers)),
		AccountType:       accountType,
		Balance:           moneyField(block, balanceMatchers),
		HighBalance:       moneyField(block, highBalanceMatchers),
		CreditLimit:       moneyField(block, creditLimitMatchers),
		OpenedOn:          dateField(block, openedMatchers),
		ReportedOn:        dateField(block, reportedMatchers),
		ClosedOn:          dateField(block, closedMatchers),
		LastActivityOn:    dateField(block, lastActivityMatchers),
		AccountStatus:     textField(block, accountStatusMatchers),
		PaymentStatus:     textField(block, paymentStatusMatchers),
		PastDue:           moneyField(block, pastDueMatchers),
		Remarks:           remarks(block),
		Category:          Categorize(accountType, block),
		Negative:          IsNegative(block),
	}
	if !hasDetail(acc) {
		return entity.Account{}, false
	}
	return acc, true
}

// hasDetail reports whether anything besides the creditor name was extracted.
func hasDetail(a entity.Account) bool {
	return a.AccountNumberMask != "" || a.AccountType != "" ||
		a.AccountStatus != "" || a.PaymentStatus != "" ||
		a.Balance != nil || a.HighBalance != nil || a.CreditLimit != nil || a.PastDue != nil ||
		a.OpenedOn != nil || a.ReportedOn != nil || a.ClosedOn != nil || a.LastActivityOn != nil ||
		len(a.Remarks) > 0
}

// ExtractAccounts splits an accounts section and extracts every usable tradeline.
func ExtractAccounts(section, bureau string) []entity.Account {
	out := []entity.Account{}
	for _, block := range SplitAccountBlocks(sectionBody(section), bureau) {
		if acc, ok := ExtractAccount(block, bureau); ok {
			acc.Position = len(out) + 1
			out = append(out, acc)
		}
	}
	return out
}

func remarks(block string) []string {
	out := []string{}
	for _, m := range remarksRegex.FindAllStringSubmatch(block, -1) {
		if v := normalize.NullableText(m[1]); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// MaskAccountNumber keeps only digits, mask characters and dashes.
func MaskAccountNumber(s string) string {
	return strings.ToUpper(maskCharsRegex.ReplaceAllString(s, ""))
}

// Categorize decides the account bucket, preferring the reported account type.
func Categorize(accountType, block string) string {
	for _, src := range []string{accountType, block} {
		l := strings.ToLower(src)
		if containsAny(l, realEstateKeywords) {
			return entity.CategoryRealEstate
		}
		if containsAny(l, revolvingKeywords) {
			return entity.CategoryRevolving
		}
	}
	return entity.CategoryOther
}

// IsNegative reports whether text mentions any derogatory keyword.
func IsNegative(text string) bool {
	return containsAny(strings.ToLower(text), negativeKeywords)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
