package game

import "testing"

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Naruto", "naruto"},
		{"  Shingeki no   Kyojin ", "shingeki no kyojin"},
		{"Re:Zero − Starting Life in Another World", "rezero starting life in another world"},
		{"Steins;Gate 0", "steinsgate 0"},
		{"K-ON!!", "kon"},
		{"\tFate/Zero\n", "fatezero"},
		{"進撃の巨人", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Fatalf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTitleIdempotent(t *testing.T) {
	inputs := []string{
		"Kimi no Na wa.",
		"  JoJo's   Bizarre Adventure: Stardust Crusaders  ",
		"Pokémon",
		"Mob Psycho 100 II",
		" spaced out ",
		"ÀÉÎ ÕÜ",
	}
	for _, in := range inputs {
		once := NormalizeTitle(in)
		if twice := NormalizeTitle(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestCheckAnswer(t *testing.T) {
	titles := []string{"Shingeki no Kyojin", "Attack on Titan"}

	cases := []struct {
		name  string
		guess string
		want  bool
	}{
		{"exact romaji", "Shingeki no Kyojin", true},
		{"exact english different case", "attack ON titan", true},
		{"punctuation ignored", "Attack-on Titan!!", true},
		{"whitespace ignored", "  attack   on titan ", true},
		{"partial within ratio", "attack on tita", true},
		{"partial below ratio", "attack", false},
		{"unrelated", "Naruto", false},
		{"empty", "", false},
		{"only punctuation", "!!!", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CheckAnswer(tc.guess, titles); got != tc.want {
				t.Fatalf("CheckAnswer(%q) = %v, want %v", tc.guess, got, tc.want)
			}
		})
	}
}

func TestCheckAnswerShortGuessNeverFuzzy(t *testing.T) {
	if CheckAnswer("na", []string{"Naruto"}) {
		t.Fatal("two-letter guess must not fuzzy match")
	}
	// a short title still matches exactly
	if !CheckAnswer("K", []string{"K"}) {
		t.Fatal("exact short match should succeed")
	}
}

func TestCheckAnswerGuessContainsTitleBelowRatio(t *testing.T) {
	// 6/9 < 0.8
	if CheckAnswer("bleach tv", []string{"Bleach"}) {
		t.Fatal("ratio below threshold should not match")
	}
}

func TestCheckAnswerGuessLongerWithinRatio(t *testing.T) {
	if !CheckAnswer("one piece tv", []string{"One Piece T"}) {
		t.Fatal("guess containing the title within ratio should match")
	}
}

func TestCheckAnswerEmptyTitles(t *testing.T) {
	if CheckAnswer("Naruto", nil) {
		t.Fatal("empty title set must never match")
	}
	if CheckAnswer("Naruto", []string{"", "!!!"}) {
		t.Fatal("titles normalizing to empty must never match")
	}
}

func TestCheckAnswerExactAlwaysWins(t *testing.T) {
	titles := []string{"Mushishi", "Mushi-Shi"}
	for _, title := range titles {
		if !CheckAnswer(title, titles) {
			t.Fatalf("guess equal to title %q should match", title)
		}
	}
}
