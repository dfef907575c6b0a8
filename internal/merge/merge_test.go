package merge_test

import (
	"testing"

	"perapera/internal/document"
	"perapera/internal/merge"
	"perapera/internal/textutil"
)

func storyDoc(blocks ...document.TextBlock) *document.AssetDocument {
	return &document.AssetDocument{AssetName: "story/data/04/1001/storytimeline_041001001", Type: document.TypeStory, Blocks: blocks}
}

func TestMergeWithoutExistingReturnsFreshUnchanged(t *testing.T) {
	fresh := storyDoc(document.TextBlock{SourceText: "こんにちは"})
	got, stats := merge.New(0).Merge(fresh, nil)
	if got != fresh || got.Blocks[0].TranslatedText != "" || stats.Matched() != 0 {
		t.Fatalf("unexpected merge result: %+v %+v", got, stats)
	}
}

func TestMergeAgainstItselfIsIdempotent(t *testing.T) {
	prior := storyDoc(
		document.TextBlock{BlockIndex: 0, SourceText: "おはよう", TranslatedText: "Good morning", SpeakerName: "A", TranslatedSpeakerName: "Ay"},
		document.TextBlock{BlockIndex: 1, SourceText: "またね", TranslatedText: "See you"},
	)
	fresh := storyDoc(
		document.TextBlock{BlockIndex: 0, SourceText: "おはよう", SpeakerName: "A"},
		document.TextBlock{BlockIndex: 1, SourceText: "またね"},
	)
	_, stats := merge.New(merge.DefaultThreshold).Merge(fresh, prior)
	for i := range prior.Blocks {
		if fresh.Blocks[i].TranslatedText != prior.Blocks[i].TranslatedText {
			t.Fatalf("block %d: got %q want %q", i, fresh.Blocks[i].TranslatedText, prior.Blocks[i].TranslatedText)
		}
	}
	if fresh.Blocks[0].TranslatedSpeakerName != "Ay" {
		t.Fatalf("expected speaker name carried, got %q", fresh.Blocks[0].TranslatedSpeakerName)
	}
	if stats.Exact != 2 || stats.Similar != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMergeSimilarTextCarriesTranslation(t *testing.T) {
	prior := storyDoc(document.TextBlock{SourceText: "こんにちは", TranslatedText: "Hello"})
	fresh := storyDoc(document.TextBlock{SourceText: "こんにちは！"})
	_, stats := merge.New(0.85).Merge(fresh, prior)
	if fresh.Blocks[0].TranslatedText != "Hello" {
		t.Fatalf("expected Hello, got %q", fresh.Blocks[0].TranslatedText)
	}
	if stats.Similar != 1 {
		t.Fatalf("expected a similarity match, got %+v", stats)
	}
}

func TestMergeThresholdIsStrict(t *testing.T) {
	const prior = "あいうえおかきくけこさしすせそたちつてと"
	cases := []struct {
		name   string
		fresh  string
		ratio  float64
		accept bool
	}{
		// 20 runes each sharing 17: 34/40
		{"at threshold", "あいうえおかきくけこさしすせそたちABC", 0.85, false},
		// 20 runes each sharing 18: 36/40
		{"above threshold", "あいうえおかきくけこさしすせそたちつAB", 0.9, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := textutil.Ratio(tc.fresh, prior); got != tc.ratio {
				t.Fatalf("Ratio = %v, want %v", got, tc.ratio)
			}
			existing := storyDoc(document.TextBlock{SourceText: prior, TranslatedText: "Kana"})
			fresh := storyDoc(document.TextBlock{SourceText: tc.fresh})
			_, stats := merge.New(merge.DefaultThreshold).Merge(fresh, existing)

			accepted := fresh.Blocks[0].TranslatedText == "Kana"
			if accepted != tc.accept || (stats.Similar == 1) != tc.accept {
				t.Fatalf("accepted=%v stats=%+v, want accepted=%v", accepted, stats, tc.accept)
			}
		})
	}
}

func TestMergeGreedyAllowsSharedDonor(t *testing.T) {
	prior := storyDoc(document.TextBlock{SourceText: "今日はいい天気ですね", TranslatedText: "Nice weather today"})
	fresh := storyDoc(
		document.TextBlock{BlockIndex: 0, SourceText: "今日はいい天気ですね。"},
		document.TextBlock{BlockIndex: 1, SourceText: "今日はいい天気ですね！"},
	)
	merge.New(0).Merge(fresh, prior)
	for i, b := range fresh.Blocks {
		if b.TranslatedText != "Nice weather today" {
			t.Fatalf("block %d: expected shared translation, got %q", i, b.TranslatedText)
		}
	}
}

func TestMergeRejectsDissimilarText(t *testing.T) {
	prior := storyDoc(document.TextBlock{SourceText: "まったく別の文章", TranslatedText: "Different"})
	fresh := storyDoc(
		document.TextBlock{SourceText: "こんにちは"},
		document.TextBlock{SourceText: ""},
	)
	_, stats := merge.New(0).Merge(fresh, prior)
	if fresh.Blocks[0].TranslatedText != "" || fresh.Blocks[1].TranslatedText != "" {
		t.Fatalf("expected no translation invented, got %+v", fresh.Blocks)
	}
	if stats.Matched() != 0 || stats.Total != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMergeExactMatchIgnoresSurroundingWhitespace(t *testing.T) {
	prior := storyDoc(document.TextBlock{SourceText: "はい", TranslatedText: "Yes"})
	fresh := storyDoc(document.TextBlock{SourceText: "はい\n"})
	merge.New(0).Merge(fresh, prior)
	// exact lookup hits, but acceptance still compares untrimmed text: 4/5 = 0.8
	if fresh.Blocks[0].TranslatedText != "" {
		t.Fatalf("expected acceptance check on untrimmed text, got %q", fresh.Blocks[0].TranslatedText)
	}
}

func TestMergeChoicesPositionally(t *testing.T) {
	prior := storyDoc(document.TextBlock{
		SourceText:     "どうする？",
		TranslatedText: "What now?",
		Choices: []document.Choice{
			{SourceText: "走る", TranslatedText: "Run"},
		},
	})
	fresh := storyDoc(document.TextBlock{
		SourceText: "どうする？",
		Choices: []document.Choice{
			{SourceText: "走る"},
			{SourceText: "休む"},
		},
	})
	merge.New(0).Merge(fresh, prior)
	choices := fresh.Blocks[0].Choices
	if choices[0].TranslatedText != "Run" || choices[1].TranslatedText != "" {
		t.Fatalf("unexpected choices: %+v", choices)
	}
}

func TestMergeTitleAndMotions(t *testing.T) {
	prior := &document.AssetDocument{Type: document.TypeStory, Title: "第1話", TranslatedTitle: "Chapter 1"}
	fresh := &document.AssetDocument{Type: document.TypeStory, Title: "第1話"}
	merge.New(0).Merge(fresh, prior)
	if fresh.TranslatedTitle != "Chapter 1" {
		t.Fatalf("expected title carried, got %q", fresh.TranslatedTitle)
	}

	priorMotion := &document.AssetDocument{Type: document.TypeUIAnimation, Motions: []document.MotionTextUnit{{SourceText: "スタート", TranslatedText: "Start"}}}
	freshMotion := &document.AssetDocument{Type: document.TypeUIAnimation, Motions: []document.MotionTextUnit{{SourceText: "スタート"}, {SourceText: "終了"}}}
	_, stats := merge.New(0).Merge(freshMotion, priorMotion)
	if freshMotion.Motions[0].TranslatedText != "Start" || freshMotion.Motions[1].TranslatedText != "" {
		t.Fatalf("unexpected motion merge: %+v", freshMotion.Motions)
	}
	if stats.Matched() != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
