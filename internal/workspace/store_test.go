package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	"perapera/internal/document"
	"perapera/internal/logging"
	"perapera/internal/services"
	"perapera/internal/testsupport"
	"perapera/internal/workspace"
)

func storyDoc(translated string) *document.AssetDocument {
	return &document.AssetDocument{
		AssetName: "story/data/01/0001/storytimeline_010001001",
		Type:      document.TypeStory,
		GroupName: "メインストーリー",
		Title:     "始まり",
		Blocks: []document.TextBlock{
			{BlockIndex: 0, SpeakerName: "トレーナー", SourceText: "<b>よろしく</b> & ね", TranslatedText: translated},
			{BlockIndex: 1, SourceText: "はい", Choices: []document.Choice{{SourceText: "走る"}}},
		},
	}
}

func storyID() document.StoryID {
	return document.ParseStoryID(document.TypeStory, "story/data/01/0001/storytimeline_010001001", "メインストーリー")
}

func TestSaveWritesIndentedUnescapedJSON(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := workspace.New(cfg, logging.NewNop())

	path, err := store.Save(context.Background(), storyID(), storyDoc(""))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if want := filepath.Join(cfg.Paths.WorkspaceDir, "story", "01", "0001", "01_メインストーリー_010001001.json"); path != want {
		t.Fatalf("path = %s, want %s", path, want)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(raw)
	if !strings.Contains(text, "<b>よろしく</b> & ね") {
		t.Fatalf("markup was escaped:\n%s", text)
	}
	if !strings.Contains(text, "\n    \"asset_name\"") {
		t.Fatalf("expected four-space indent:\n%s", text)
	}
	if !strings.Contains(text, `"translated_text": ""`) {
		t.Fatalf("empty translations must be written:\n%s", text)
	}
	if !store.Exists(storyID()) {
		t.Fatalf("expected document to exist")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestSaveBacksUpReplacedDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := workspace.New(cfg, logging.NewNop())
	ctx := services.WithRunID(context.Background(), "run-1")

	first, err := store.Save(ctx, storyID(), storyDoc("Nice to meet you"))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	original, _ := os.ReadFile(first)

	if _, err := store.Save(ctx, storyID(), storyDoc("Hello")); err != nil {
		t.Fatalf("second save: %v", err)
	}
	backup := workspace.BackupPath(cfg.BackupDir(), "run-1", storyID().RelPath())
	restored, err := workspace.ReadBackup(backup)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(restored) != string(original) {
		t.Fatalf("backup does not match replaced document")
	}

	loaded, err := store.Load(storyID())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Blocks[0].TranslatedText != "Hello" {
		t.Fatalf("unexpected translation %q", loaded.Blocks[0].TranslatedText)
	}
}

func TestUnchangedSaveSkipsBackup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := workspace.New(cfg, logging.NewNop())
	ctx := services.WithRunID(context.Background(), "run-2")
	for i := 0; i < 2; i++ {
		if _, err := store.Save(ctx, storyID(), storyDoc("")); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.BackupDir(), "run-2")); !os.IsNotExist(err) {
		t.Fatalf("identical content must not be backed up, stat err=%v", err)
	}
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store := workspace.New(testsupport.NewConfig(t), logging.NewNop())
	doc, err := store.Load(storyID())
	if err != nil || doc != nil {
		t.Fatalf("expected nil, nil; got %v, %v", doc, err)
	}
}

func TestReadDocumentToleratesBOMAndLegacyKeys(t *testing.T) {
	legacy := `{"asset_name":"home/data/00001/01/hometimeline_00001_01_0101","type":"home",` +
		`"text_blocks":[{"block_index":3,"jpName":"ゴルシ","enName":"Golshi","jpText":"よっ","enText":"Yo","voiceIdx":7,"cueSheet":"snd"}]}`
	dir := t.TempDir()

	utf8Path := filepath.Join(dir, "utf8.json")
	testsupport.WriteFile(t, utf8Path, append([]byte{0xEF, 0xBB, 0xBF}, legacy...))

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(legacy))
	if err != nil {
		t.Fatalf("encode utf16: %v", err)
	}
	utf16Path := filepath.Join(dir, "utf16.json")
	testsupport.WriteFile(t, utf16Path, utf16)

	for _, path := range []string{utf8Path, utf16Path} {
		doc, err := workspace.ReadDocument(path)
		if err != nil {
			t.Fatalf("read %s: %v", filepath.Base(path), err)
		}
		block := doc.Blocks[0]
		if block.SourceText != "よっ" || block.TranslatedText != "Yo" || block.TranslatedSpeakerName != "Golshi" {
			t.Fatalf("legacy keys not mapped: %+v", block)
		}
		if block.VoiceRef == nil || *block.VoiceRef.Cue != 7 || block.VoiceRef.Sheet != "snd" {
			t.Fatalf("voice reference not mapped: %+v", block.VoiceRef)
		}
	}
}

func TestReadDocumentRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	for name, payload := range map[string]string{"empty.json": "  \n", "broken.json": "{"} {
		path := filepath.Join(dir, name)
		testsupport.WriteFile(t, path, []byte(payload))
		if _, err := workspace.ReadDocument(path); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidateAndFind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := workspace.New(cfg, logging.NewNop())
	ctx := context.Background()

	if _, err := store.Save(ctx, storyID(), storyDoc("Nice to meet you")); err != nil {
		t.Fatalf("save story: %v", err)
	}
	motion := &document.AssetDocument{
		AssetName: "uianimation/flash/home/top",
		Type:      document.TypeUIAnimation,
		Motions: []document.MotionTextUnit{
			{BlockIndex: 0, SourceText: "ホーム", TranslatedText: "Home"},
			{BlockIndex: 1, SourceText: "ショップ"},
		},
	}
	motionID := document.ParseStoryID(document.TypeUIAnimation, motion.AssetName, "")
	if _, err := store.Save(ctx, motionID, motion); err != nil {
		t.Fatalf("save motion: %v", err)
	}
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.WorkspaceDir, "story", "broken.json"), []byte("{"))

	reports, err := store.Validate(ctx, "")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	byAsset := map[string]workspace.Report{}
	var broken int
	for _, r := range reports {
		if r.Err != nil {
			broken++
			continue
		}
		byAsset[r.AssetName] = r
	}
	if broken != 1 {
		t.Fatalf("expected one unreadable document, got %d", broken)
	}
	story := byAsset["story/data/01/0001/storytimeline_010001001"]
	if len(story.Untranslated) != 1 || story.Untranslated[0] != 1 || story.UntranslatedChoices != 1 || !story.UntranslatedTitle {
		t.Fatalf("unexpected story report: %+v", story)
	}
	ui := byAsset["uianimation/flash/home/top"]
	if len(ui.Untranslated) != 1 || ui.Untranslated[0] != 1 || ui.Complete() {
		t.Fatalf("unexpected motion report: %+v", ui)
	}

	matches, err := store.Find(ctx, "MEET", "")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(matches) != 1 || matches[0].Field != "translated_text" || matches[0].BlockIndex != 0 {
		t.Fatalf("unexpected matches: %+v", matches)
	}
	matches, _ = store.Find(ctx, "ショップ", document.TypeUIAnimation)
	if len(matches) != 1 || matches[0].AssetName != "uianimation/flash/home/top" {
		t.Fatalf("unexpected motion matches: %+v", matches)
	}
}
