package canonical

import (
	"bytes"
	"encoding/json"
)

// sampleLists is the fixed payload used for dry runs and health checks.
var sampleLists = map[string]string{
	"Credit Score": `[
		{"Position": 1, "_STATUS": "captured", "text": "Equifax 701"},
		{"Position": 2, "_STATUS": "captured", "text": "Experian 698"},
		{"Position": 3, "_STATUS": "captured", "text": "TransUnion 712"}
	]`,
	"Personal Info…": `[
		{"Position": 1, "Name": "SAMPLE CONSUMER", "Date of Birth": "1980", "Current Address": "1 SAMPLE WAY, ANYTOWN, CA 90000"}
	]`,
	"Consumer Stateme…": `[
		{"Position": 1, "Bureau": "Equifax", "Statement": ""}
	]`,
	"Real Estate Accounts": `[
		{"Position": 1, "Creditor": "SAMPLE MORTGAGE CO", "Account Number": "XXXX1234", "Balance": "$1,200", "Date Opened": "06/01/2015", "Bureau": "Equifax"},
		{"Position": 2, "Creditor": "SAMPLE HOME EQUITY", "Account Number": "XXXX5678", "Balance": "$35,000.00", "Date Opened": "03/15/2018", "Bureau": "Experian"}
	]`,
	"Revolving Accounts": `[
		{"Position": 1, "Creditor": "SAMPLE CARD SERVICES", "Account Number": "XXXX9012", "Balance": "$450.25", "Credit Limit": "$2,500", "Payment Status": "Current", "Bureau": "TransUnion"}
	]`,
	"Inquiries Credit": `[
		{"Position": 1, "Creditor Name": "SAMPLE AUTO FINANCE", "Date of Inquiry": "01/10/2024", "Bureau": "Experian"}
	]`,
}

// SampleCapturedLists returns a fresh copy of the deterministic dry-run payload.
func SampleCapturedLists() CapturedLists {
	out := make(CapturedLists, len(sampleLists))
	for k, v := range sampleLists {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v)); err != nil {
			panic("canonical: invalid sample payload " + k)
		}
		out[k] = json.RawMessage(buf.Bytes())
	}
	return out
}
