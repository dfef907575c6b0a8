package extract_test

import (
	"context"
	"errors"
	"testing"

	"perapera/internal/document"
	"perapera/internal/extract"
	"perapera/internal/logging"
	"perapera/internal/scenegraph"
	"perapera/internal/services"
)

type tree = scenegraph.Tree

func blockRef(pathID int64) tree {
	return tree{"TextTrack": tree{"ClipList": []any{tree{"m_FileID": int64(0), "m_PathID": pathID}}}}
}

func clip(name, text string, cue, flag int64) tree {
	return tree{
		"Name":           name,
		"Text":           text,
		"CueId":          cue,
		"DifferenceFlag": flag,
		"VoiceSheetId":   "snd_voi_story_0001",
		"NextBlock":      int64(0),
	}
}

func run(t *testing.T, assetType string, in extract.Input) extract.Result {
	t.Helper()
	in.AssetType = assetType
	if in.AssetName == "" {
		in.AssetName = "test/" + assetType
	}
	return extract.NewDispatcher(logging.NewNop()).Extract(context.Background(), in)
}

func mustFind(t *testing.T, res extract.Result) *document.AssetDocument {
	t.Helper()
	if res.Status != extract.StatusFound {
		t.Fatalf("expected found, got %s (%s)", res.Status, res.Reason)
	}
	return res.Document
}

// A flag-4 block bumps the cue offset before its own effective cue is taken,
// so its cue 20 becomes 21 and the block after it moves from 30 to 31. This
// conflicts with bumping only for later blocks, which would leave the flagged
// block at 20 while still moving 30 to 31; the renumbering example with cue
// 20 yielding 21 decides it.
func TestStoryTimelineRenumbersCues(t *testing.T) {
	timeline := tree{
		"Title": "第1話",
		"BlockList": []any{
			tree{},
			blockRef(10),
			blockRef(11),
			blockRef(12),
			blockRef(13),
		},
	}
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"m_Name": "other"}),
		scenegraph.NewObject(2, "MonoBehaviour", timeline),
		scenegraph.NewObject(10, "MonoBehaviour", clip("1001", "おはよう", 10, 2)),
		scenegraph.NewObject(11, "MonoBehaviour", clip("Narrator", "それから", 20, 4)),
		scenegraph.NewObject(12, "MonoBehaviour", clip("999", "またね", 30, 0)),
		scenegraph.NewObject(13, "MonoBehaviour", clip("", "……", -1, 4)),
	)

	doc := mustFind(t, run(t, document.TypeStory, extract.Input{
		Graph:          graph,
		GroupName:      "メインストーリー",
		CharacterNames: map[int]string{1001: "スペシャルウィーク"},
	}))

	if doc.Title != "第1話" || doc.GroupName != "メインストーリー" || doc.Type != document.TypeStory {
		t.Fatalf("unexpected identity: %+v", doc)
	}
	if len(doc.Blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(doc.Blocks))
	}
	wantCues := []int{11, 21, 31, -1}
	wantSpeakers := []string{"スペシャルウィーク", "Narrator", "999", ""}
	for i, block := range doc.Blocks {
		if block.BlockIndex != i {
			t.Fatalf("block %d has index %d", i, block.BlockIndex)
		}
		if block.VoiceRef == nil || block.VoiceRef.Cue == nil || *block.VoiceRef.Cue != wantCues[i] {
			t.Fatalf("block %d cue = %+v, want %d", i, block.VoiceRef, wantCues[i])
		}
		if block.SpeakerName != wantSpeakers[i] {
			t.Fatalf("block %d speaker = %q, want %q", i, block.SpeakerName, wantSpeakers[i])
		}
		if block.TranslatedText != "" {
			t.Fatalf("block %d has invented translation %q", i, block.TranslatedText)
		}
	}
	if *doc.Blocks[0].VoiceRef.SourceCue != 10 || doc.Blocks[0].VoiceRef.Sheet != "snd_voi_story_0001" {
		t.Fatalf("source cue not kept: %+v", doc.Blocks[0].VoiceRef)
	}
	if doc.Blocks[1].PathID != 11 || doc.Blocks[1].FlowFlag != 4 {
		t.Fatalf("unexpected block metadata: %+v", doc.Blocks[1])
	}
}

func TestStoryTimelineKeepsChoicesAndSpans(t *testing.T) {
	c := clip("", "どうする？", 5, 0)
	c["ChoiceDataList"] = []any{
		tree{"Text": "走る", "NextBlock": int64(3), "DifferenceFlag": int64(0)},
		tree{"Text": "休む", "NextBlock": int64(5), "DifferenceFlag": int64(1)},
	}
	c["ColorTextInfoList"] = []any{tree{"Text": "大事"}}
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"Title": "0", "BlockList": []any{tree{}, blockRef(7)}}),
		scenegraph.NewObject(7, "MonoBehaviour", c),
	)
	doc := mustFind(t, run(t, document.TypeStory, extract.Input{Graph: graph}))
	if doc.Title != "" {
		t.Fatalf("placeholder title kept: %q", doc.Title)
	}
	block := doc.Blocks[0]
	if len(block.Choices) != 2 || block.Choices[1].SourceText != "休む" || *block.Choices[1].NextBlock != 5 || block.Choices[1].FlowFlag != 1 {
		t.Fatalf("unexpected choices: %+v", block.Choices)
	}
	if len(block.ColoredSpans) != 1 || block.ColoredSpans[0].SourceText != "大事" {
		t.Fatalf("unexpected spans: %+v", block.ColoredSpans)
	}
}

func TestStoryTimelineSkipsBrokenBlocks(t *testing.T) {
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"BlockList": []any{
			tree{},
			blockRef(10),
			tree{"TextTrack": tree{"ClipList": []any{}}},
			blockRef(404),
			blockRef(11),
			blockRef(12),
		}}),
		scenegraph.NewObject(10, "MonoBehaviour", clip("", "一", 1, 0)),
		scenegraph.NewFailingObject(11, "MonoBehaviour", errors.New("truncated")),
		scenegraph.NewObject(12, "MonoBehaviour", clip("", "五", 2, 0)),
	)
	res := run(t, document.TypeStory, extract.Input{Graph: graph})
	doc := mustFind(t, res)
	if res.Skipped != 3 {
		t.Fatalf("expected 3 skipped blocks, got %d", res.Skipped)
	}
	if len(doc.Blocks) != 2 || doc.Blocks[0].BlockIndex != 0 || doc.Blocks[1].BlockIndex != 4 {
		t.Fatalf("gaps must be preserved, got %+v", doc.Blocks)
	}
}

func TestTimelineWithoutBlockListIsNotApplicable(t *testing.T) {
	graph := scenegraph.NewGraph(
		scenegraph.NewFailingObject(1, "MonoBehaviour", errors.New("bad")),
		scenegraph.NewObject(2, "TextAsset", tree{"m_Script": "x"}),
	)
	res := run(t, document.TypeStory, extract.Input{Graph: graph})
	if res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable, got %s", res.Status)
	}
	if !errors.Is(res.Err(), services.ErrStructuralMismatch) {
		t.Fatalf("expected structural mismatch, got %v", res.Err())
	}
	if services.OutcomeFor(res.Err()) != services.OutcomeSkipped {
		t.Fatalf("mismatch should be recorded as skipped")
	}
}

func TestHomeTimeline(t *testing.T) {
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"BlockList": []any{blockRef(10), blockRef(11), blockRef(12)}}),
		scenegraph.NewObject(10, "MonoBehaviour", clip("1001", "ただいま", 3, 2)),
		scenegraph.NewObject(11, "MonoBehaviour", clip("1001", "", 4, 0)),
		scenegraph.NewObject(12, "MonoBehaviour", clip("", "おかえり", 5, 0)),
	)
	res := run(t, document.TypeHome, extract.Input{Graph: graph, CharacterNames: map[int]string{1001: "トレーナー"}})
	doc := mustFind(t, res)
	if res.Skipped != 0 {
		t.Fatalf("empty clips are not failures, got %d skipped", res.Skipped)
	}
	if len(doc.Blocks) != 2 || doc.Blocks[0].BlockIndex != 0 || doc.Blocks[1].BlockIndex != 2 {
		t.Fatalf("unexpected blocks: %+v", doc.Blocks)
	}
	if doc.Blocks[0].SpeakerName != "トレーナー" {
		t.Fatalf("speaker not resolved: %q", doc.Blocks[0].SpeakerName)
	}
	if *doc.Blocks[0].VoiceRef.Cue != 3 {
		t.Fatalf("home cues are not renumbered, got %d", *doc.Blocks[0].VoiceRef.Cue)
	}

	empty := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"BlockList": []any{blockRef(10)}}),
		scenegraph.NewObject(10, "MonoBehaviour", clip("", "", 0, 0)),
	)
	if res := run(t, document.TypeHome, extract.Input{Graph: empty}); res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable, got %s", res.Status)
	}
}

func TestRaceTextData(t *testing.T) {
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"textData": []any{
			tree{"key": int64(7), "text": "スタート！"},
			tree{"key": int64(9)},
			tree{"text": "ゴール"},
		}}),
	)
	doc := mustFind(t, run(t, document.TypeRace, extract.Input{Graph: graph}))
	if len(doc.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %+v", doc.Blocks)
	}
	if doc.Blocks[0].BlockIndex != 7 || doc.Blocks[1].BlockIndex != 2 || doc.Blocks[1].SourceText != "ゴール" {
		t.Fatalf("unexpected blocks: %+v", doc.Blocks)
	}
}

func TestLyricsScript(t *testing.T) {
	script := "time,lyrics\n#header\n0.50, こんにちは \n,skipped\n\n1.25,\"さよ,なら\"\n2.00\n"
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "TextAsset", tree{"m_Script": ""}),
		scenegraph.NewObject(2, "TextAsset", tree{"m_Script": "a\nb\n"}),
		scenegraph.NewObject(3, "TextAsset", tree{"m_Script": []byte(script)}),
	)
	res := run(t, document.TypeLyrics, extract.Input{Graph: graph})
	doc := mustFind(t, res)
	if len(doc.Blocks) != 2 || res.Skipped != 1 {
		t.Fatalf("unexpected result: %+v skipped=%d", doc.Blocks, res.Skipped)
	}
	if doc.Blocks[0].Time != "0.50" || doc.Blocks[0].SourceText != "こんにちは" {
		t.Fatalf("unexpected first line: %+v", doc.Blocks[0])
	}
	if doc.Blocks[1].BlockIndex != 1 || doc.Blocks[1].SourceText != "さよ,なら" {
		t.Fatalf("unexpected second line: %+v", doc.Blocks[1])
	}

	none := scenegraph.NewGraph(scenegraph.NewObject(1, "TextAsset", tree{"m_Script": "a\nb\n"}))
	if res := run(t, document.TypeLyrics, extract.Input{Graph: none}); res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable, got %s", res.Status)
	}
}

func TestPreviewItems(t *testing.T) {
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(1, "MonoBehaviour", tree{"DataArray": []any{
			tree{"Name": "A", "Text": ""},
			tree{"Name": "B", "Text": "見て！"},
		}}),
	)
	doc := mustFind(t, run(t, document.TypePreview, extract.Input{Graph: graph}))
	if len(doc.Blocks) != 1 || doc.Blocks[0].BlockIndex != 1 || doc.Blocks[0].SpeakerName != "B" {
		t.Fatalf("unexpected blocks: %+v", doc.Blocks)
	}

	blank := scenegraph.NewGraph(scenegraph.NewObject(1, "MonoBehaviour", tree{"DataArray": []any{}}))
	if res := run(t, document.TypePreview, extract.Input{Graph: blank}); res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable, got %s", res.Status)
	}
}

func motionParam(id int64, name string, texts []string, children ...int64) tree {
	textParams := make([]any, 0, len(texts))
	for i, text := range texts {
		textParams = append(textParams, tree{"_text": text, "_objectName": name + "_obj" + string(rune('0'+i))})
	}
	objects := make([]any, 0, len(children))
	for _, child := range children {
		objects = append(objects, tree{"_childMotionID": child})
	}
	return tree{
		"_id":              id,
		"_name":            name,
		"_textParamList":   textParams,
		"_objectParamList": objects,
		"_planeParamList":  []any{},
	}
}

func animation(rootID int64, params ...any) *scenegraph.Graph {
	return scenegraph.NewGraph(scenegraph.NewObject(1, "MonoBehaviour", tree{
		"_rootMotionID":         rootID,
		"_motionParameterGroup": tree{"_motionParameterList": params},
	}))
}

func TestUIAnimationSelfReferenceTerminates(t *testing.T) {
	graph := animation(5, motionParam(5, "loop", []string{"ループ"}, 5, 5))
	res := run(t, document.TypeUIAnimation, extract.Input{Graph: graph, Platform: "Android", ContentHash: "ABCDEF"})
	doc := mustFind(t, res)
	if len(doc.Motions) != 1 || doc.Motions[0].SourceText != "ループ" {
		t.Fatalf("expected one visit, got %+v", doc.Motions)
	}
	if doc.BundleHashes["android"] != "ABCDEF" {
		t.Fatalf("unexpected bundle hashes: %+v", doc.BundleHashes)
	}
}

func TestUIAnimationWalksDepthFirstFromRoot(t *testing.T) {
	graph := animation(1,
		motionParam(3, "c", []string{"C"}),
		motionParam(1, "root", []string{"R", "  "}, 2, 3),
		motionParam(2, "b", []string{"B"}, 1, 4, 99),
		motionParam(4, "d", []string{"D"}),
		motionParam(8, "orphan", []string{"X"}),
	)
	doc := mustFind(t, run(t, document.TypeUIAnimation, extract.Input{Graph: graph}))
	var got []string
	for i, unit := range doc.Motions {
		if unit.BlockIndex != i {
			t.Fatalf("unit %d has block index %d", i, unit.BlockIndex)
		}
		got = append(got, unit.SourceText)
	}
	want := []string{"R", "B", "D", "C"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if doc.Motions[0].MotionIndex != 1 || doc.Motions[0].MotionName != "root" || doc.Motions[0].ObjectName != "root_obj0" {
		t.Fatalf("unexpected unit: %+v", doc.Motions[0])
	}
	if doc.BundleHashes != nil {
		t.Fatalf("hashes need a platform and hash, got %+v", doc.BundleHashes)
	}
}

func TestUIAnimationWithoutRootVisitsEveryMotion(t *testing.T) {
	graph := animation(0,
		motionParam(2, "b", []string{"B"}, 1),
		motionParam(1, "a", []string{"A"}, 2),
		motionParam(3, "c", []string{"C"}),
	)
	doc := mustFind(t, run(t, document.TypeUIAnimation, extract.Input{Graph: graph}))
	want := []string{"B", "A", "C"}
	if len(doc.Motions) != len(want) {
		t.Fatalf("unexpected units: %+v", doc.Motions)
	}
	for i, unit := range doc.Motions {
		if unit.SourceText != want[i] {
			t.Fatalf("unit %d = %q, want %q", i, unit.SourceText, want[i])
		}
	}
}

func TestUIAnimationEmptyListAndMissingGroup(t *testing.T) {
	doc := mustFind(t, run(t, document.TypeUIAnimation, extract.Input{Graph: animation(0)}))
	if len(doc.Motions) != 0 {
		t.Fatalf("expected no units, got %+v", doc.Motions)
	}
	graph := scenegraph.NewGraph(scenegraph.NewObject(1, "MonoBehaviour", tree{"m_Name": "x"}))
	if res := run(t, document.TypeUIAnimation, extract.Input{Graph: graph}); res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable, got %s", res.Status)
	}
}

func TestGenericAndDispatch(t *testing.T) {
	graph := scenegraph.NewGraph(scenegraph.NewObject(1, "Texture2D", tree{}))
	doc := mustFind(t, run(t, document.TypeGeneric, extract.Input{Graph: graph, AssetName: "atlas/foo"}))
	if doc.AssetName != "atlas/foo" || doc.Type != document.TypeGeneric || len(doc.Blocks) != 0 {
		t.Fatalf("unexpected document: %+v", doc)
	}

	if res := run(t, document.TypeGeneric, extract.Input{Graph: scenegraph.NewGraph()}); res.Status != extract.StatusNotApplicable {
		t.Fatalf("expected not applicable for an empty graph, got %s", res.Status)
	}

	res := run(t, "movie", extract.Input{Graph: graph})
	if res.Status != extract.StatusFailed || !errors.Is(res.Err(), services.ErrValidation) {
		t.Fatalf("expected validation failure, got %s %v", res.Status, res.Err())
	}

	d := extract.NewDispatcher(logging.NewNop())
	for _, typ := range document.Types {
		if !d.Supports(typ) {
			t.Fatalf("missing walker for %s", typ)
		}
	}
	if len(d.Types()) != len(document.Types) {
		t.Fatalf("unexpected walker set: %v", d.Types())
	}
}

func TestTimelineStopsWhenCanceled(t *testing.T) {
	timeline := tree{"BlockList": []any{tree{}, blockRef(10)}}
	graph := scenegraph.NewGraph(
		scenegraph.NewObject(2, "MonoBehaviour", timeline),
		scenegraph.NewObject(10, "MonoBehaviour", clip("1001", "おはよう", 10, 0)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := extract.NewDispatcher(logging.NewNop()).Extract(ctx, extract.Input{
		AssetType: document.TypeStory,
		AssetName: "story/data/04/1001/storytimeline_041001001",
		Graph:     graph,
	})
	if res.Status != extract.StatusFailed {
		t.Fatalf("expected failure, got %s", res.Status)
	}
	if !errors.Is(res.Err(), context.Canceled) {
		t.Fatalf("expected cancellation, got %v", res.Err())
	}
	if kind := services.Kind(res.Err()); kind != "Canceled" {
		t.Fatalf("Kind = %q, want Canceled", kind)
	}
}
