package parser

import (
	"strings"
	"testing"

	"github.com/ovaphlow/pitchfork/service-credit-report/internal/report/entity"
)

func TestDetectBureau(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		bureau     string
		confidence string
	}{
		{"two experian one transunion", "Experian report. Visit experian.com. Disputes are shared with TransUnion.", entity.BureauExperian, ConfidenceHigh},
		{"single indicator", "Call 800-685-1111 for help", entity.BureauEquifax, ConfidenceMedium},
		{"tie", "Equifax and Experian", entity.BureauUnknown, ConfidenceLow},
		{"url alone", "Visit www.experian.com for help", entity.BureauExperian, ConfidenceMedium},
		{"brand and url", "Experian Credit Report\nwww.experian.com", entity.BureauExperian, ConfidenceHigh},
		{"nothing", "plain text", entity.BureauUnknown, ConfidenceLow},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := DetectBureau(c.text)
			if got.Name != c.bureau || got.Confidence != c.confidence {
				t.Errorf("DetectBureau = %+v, want %s/%s", got, c.bureau, c.confidence)
			}
		})
	}
}

func TestDetectBureau_ReturnsIndicatorsAndUsesHeaderOnly(t *testing.T) {
	got := DetectBureau("TransUnion Consumer Relations, transunion.com")
	if len(got.Indicators) != 2 {
		t.Errorf("indicators = %v", got.Indicators)
	}

	text := strings.Repeat("x", 1200) + " equifax equifax.com"
	if got := DetectBureau(text); got.Name != entity.BureauUnknown {
		t.Errorf("indicators past the header window must be ignored, got %s", got.Name)
	}
}

func TestSegment_OrderAndBoundaries(t *testing.T) {
	filler := strings.Repeat("detail line with enough characters\n", 3)
	text := "Inquiries\n" + filler + "Public Records\n" + filler + "Personal Information\n" + filler
	sections := Segment(text)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %v", keys(sections))
	}
	if strings.Contains(sections[SectionInquiries], "Public Records") {
		t.Error("inquiries section ran past the next header")
	}
	if !strings.HasPrefix(sections[SectionPersonalInformation], "Personal Information") {
		t.Error("section should start at its header")
	}
}

func TestSegment_RejectsHeaderOnly(t *testing.T) {
	text := "Collections\nnone\nInquiries\n" + strings.Repeat("row of inquiry data here\n", 4)
	sections := Segment(text)
	if _, ok := sections[SectionCollections]; ok {
		t.Error("collections has no real content and should be rejected")
	}
	if _, ok := sections[SectionInquiries]; !ok {
		t.Error("inquiries should be found")
	}
}

func TestConfidence_Bounds(t *testing.T) {
	if got := Confidence(ConfidenceHigh, 100, 100); got != 100 {
		t.Errorf("max confidence = %d", got)
	}
	if got := Confidence("", 0, 0); got != 0 {
		t.Errorf("min confidence = %d", got)
	}
	if got := Confidence(ConfidenceMedium, 2, 3); got != 20+16+9 {
		t.Errorf("confidence = %d", got)
	}
	for s := -1; s < 12; s++ {
		for a := -1; a < 15; a++ {
			for _, c := range []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow, "other"} {
				if v := Confidence(c, s, a); v < 0 || v > 100 {
					t.Fatalf("Confidence(%s,%d,%d) = %d out of bounds", c, s, a, v)
				}
			}
		}
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
