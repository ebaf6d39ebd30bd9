package pipeline

import (
	"strings"
	"testing"
)

func newTestSplitter(t *testing.T, limit int) *Splitter {
	t.Helper()
	s, err := NewSplitter(limit)
	if err != nil {
		t.Fatalf("NewSplitter() error: %v", err)
	}
	return s
}

func TestSplit_BasicSentences(t *testing.T) {
	s := newTestSplitter(t, 100)
	frags := s.Split("The actor gained access. They moved laterally afterwards.")
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2: %+v", len(frags), frags)
	}
	if !strings.Contains(frags[0].Text, "gained access") {
		t.Errorf("fragment 0 = %q", frags[0].Text)
	}
}

func TestSplit_RespectsAbbreviations(t *testing.T) {
	s := newTestSplitter(t, 100)
	frags := s.Split("The report by Dr. Smith covers the campaign in the U.S. region fully.")
	if len(frags) != 1 {
		t.Errorf("abbreviation caused a split: %d fragments %+v", len(frags), frags)
	}
}

func TestSplit_MergesDefangedTokens(t *testing.T) {
	s := newTestSplitter(t, 100)
	frags := s.Split("The C2 domain was evil[.]example[.]com according to the report.")
	for _, f := range frags {
		if strings.HasSuffix(f.Text, "[.") {
			t.Errorf("defanged token split across fragments: %q", f.Text)
		}
	}
}

func TestSplit_IsolatesIndicators(t *testing.T) {
	s := newTestSplitter(t, 100)
	frags := s.Split("The host beaconed to 10.2.3.4 over https.")
	var ipAlone bool
	for _, f := range frags {
		if f.Text == "10.2.3.4" {
			ipAlone = true
		}
	}
	if !ipAlone {
		t.Errorf("IPv4 not isolated: %+v", frags)
	}
}

func TestSplit_IsolatesCompressedIPv6(t *testing.T) {
	s := newTestSplitter(t, 100)
	for _, addr := range []string{
		"2001:db8::1",
		"2001:db8:0:0:0:0:0:1",
		"fe80::",
	} {
		frags := s.Split("Traffic went to " + addr + " afterwards.")
		var alone bool
		for _, f := range frags {
			if f.Text == addr {
				alone = true
			}
		}
		if !alone {
			t.Errorf("%s not isolated: %+v", addr, frags)
		}
	}
}

func TestSplit_IsolatesHashes(t *testing.T) {
	s := newTestSplitter(t, 100)
	hash := strings.Repeat("ab", 16) // md5 length
	frags := s.Split("The dropper hash was " + hash + " per the vendor.")
	var alone bool
	for _, f := range frags {
		if f.Text == hash {
			alone = true
		}
	}
	if !alone {
		t.Errorf("hash not isolated: %+v", frags)
	}
}

func TestSplit_BreaksOnBrTags(t *testing.T) {
	s := newTestSplitter(t, 100)
	frags := s.Split("first line<br>second line")
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2: %+v", len(frags), frags)
	}
}

func TestSplit_TruncatesToLimit(t *testing.T) {
	s := newTestSplitter(t, 3)
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("This is a sentence about malware activity. ")
	}
	frags := s.Split(b.String())
	if len(frags) != 3 {
		t.Errorf("got %d fragments, want limit 3", len(frags))
	}
}

func TestHTMLToText_StripsTags(t *testing.T) {
	got := htmlToText("<b>bold</b> &amp; plain")
	if got != "bold & plain" {
		t.Errorf("htmlToText() = %q", got)
	}
}

func TestMergeDefangedSplits(t *testing.T) {
	merged := mergeDefangedSplits([]string{"evil[.", "]com resolved."})
	if len(merged) != 1 {
		t.Fatalf("got %d sentences, want 1", len(merged))
	}
	if merged[0] != "evil[.]com resolved." {
		t.Errorf("merged = %q", merged[0])
	}
}
