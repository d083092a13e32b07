package ingest

import "testing"

func TestClassify(t *testing.T) {
	c := Classifier{TitleMarker: "FORMBOOK", ContinuationMarker: "contd"}

	cases := []struct {
		text string
		want Kind
	}{
		{"FORMBOOK", TitleMarker},
		{"contd", Continuation},
		{"12Mar24", RaceDate},
		{"1Jan99", RaceDate},
		{"DENMAN", HorseName},
		{"O'REILLY", HorseName},
		{"SEA-PIGEON", HorseName},
		{"MR.", HorseName},
		{"ST.JOHN", HorseName},
		{"P.", Data},
		{".DENMAN", Data},
		{"MR..", Data},
		{"R", Data},
		{"Johnson", Data},
		{"11-10", Data},
		{"Ch", Data},
		{"(IRE)", Data},
		{"31Feb24", Data},
		{"12Mrz24", Data},
		{"£1,234", Data},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestClassifyWithoutMarkers(t *testing.T) {
	var c Classifier
	if got := c.Classify("FORMBOOK"); got != HorseName {
		t.Errorf("Without a configured marker FORMBOOK is a name word, got %v", got)
	}
	if got := c.Classify(""); got != Data {
		t.Errorf("Empty token should be data, got %v", got)
	}
}

func TestParseRaceDate(t *testing.T) {
	d, err := ParseRaceDate("12Mar24")
	if err != nil {
		t.Fatal(err)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 12 {
		t.Errorf("Unexpected date %v", d)
	}
}
