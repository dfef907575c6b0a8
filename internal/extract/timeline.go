package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"perapera/internal/document"
	"perapera/internal/scenegraph"
)

const (
	blockListField = "BlockList"

	// flagLocalCue shifts the block's own cue id by one.
	flagLocalCue = 2
	// flagGlobalCue shifts the cue id of this and every later block by one.
	flagGlobalCue = 4

	noCue = -1
)

type timelineMode struct {
	// skipLeading drops the first BlockList entry, which holds no text in
	// story timelines.
	skipLeading bool
	// requireText omits clips whose body is empty.
	requireText bool
	// requireBlocks reports NotApplicable when nothing was extracted.
	requireBlocks bool
	keepTitle     bool
	renumberCues  bool
}

var (
	storyMode = timelineMode{skipLeading: true, keepTitle: true, renumberCues: true}
	homeMode  = timelineMode{requireText: true, requireBlocks: true}
)

func walkStory(ctx context.Context, in Input, logger *slog.Logger) Result {
	return walkTimeline(ctx, in, logger, storyMode)
}

func walkHome(ctx context.Context, in Input, logger *slog.Logger) Result {
	return walkTimeline(ctx, in, logger, homeMode)
}

// walkTimeline follows each BlockList entry to its first text clip. Cue
// renumbering runs strictly in block order.
func walkTimeline(ctx context.Context, in Input, logger *slog.Logger, mode timelineMode) Result {
	root, _ := firstTree(in.Graph, "MonoBehaviour", logger, hasKey(blockListField))
	if root == nil {
		return NotApplicable("no MonoBehaviour carries a BlockList")
	}

	doc := &document.AssetDocument{Blocks: []document.TextBlock{}}
	if mode.keepTitle {
		if title := root.String("Title"); title != "" && title != "0" {
			doc.Title = title
		}
	}

	entries, _ := root.List(blockListField)
	if mode.skipLeading && len(entries) > 0 {
		entries = entries[1:]
	}

	var (
		skipped     int
		globalShift int
	)
	for pos, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Failed(err)
		}
		index := pos

		pathID, err := clipReference(entry)
		if err != nil {
			skipped++
			warnSkipped(logger, "timeline block skipped", index, 0, err)
			continue
		}
		obj, ok := in.Graph.Lookup(pathID)
		if !ok {
			skipped++
			warnSkipped(logger, "timeline block skipped", index, pathID, fmt.Errorf("text clip %d not found", pathID))
			continue
		}
		clip, err := obj.Tree()
		if err != nil {
			skipped++
			warnSkipped(logger, "timeline block skipped", index, pathID, err)
			continue
		}

		text := clip.String("Text")
		if mode.requireText && text == "" {
			continue
		}

		block := document.TextBlock{
			BlockIndex:  index,
			PathID:      pathID,
			SpeakerName: speakerName(clip.String("Name"), in.CharacterNames),
			SourceText:  text,
			Choices:     clipChoices(clip),
		}
		if spans := clipSpans(clip); len(spans) > 0 {
			block.ColoredSpans = spans
		}
		if next, ok := clip.Int("NextBlock"); ok {
			block.NextBlock = document.IntPtr(int(next))
		}
		flag, _ := clip.Int("DifferenceFlag")
		block.FlowFlag = int(flag)

		if cue, ok := clip.Int("CueId"); ok {
			ref := &document.VoiceRef{Sheet: clip.String("VoiceSheetId"), SourceCue: document.IntPtr(int(cue))}
			effective := int(cue)
			if mode.renumberCues && cue != noCue {
				if flag == flagGlobalCue {
					globalShift++
				}
				local := 0
				if flag == flagLocalCue {
					local = 1
				}
				effective += local + globalShift
			}
			ref.Cue = document.IntPtr(effective)
			block.VoiceRef = ref
		} else if sheet := clip.String("VoiceSheetId"); sheet != "" {
			block.VoiceRef = &document.VoiceRef{Sheet: sheet}
		}

		doc.Blocks = append(doc.Blocks, block)
	}

	if mode.requireBlocks && len(doc.Blocks) == 0 {
		return NotApplicable("timeline holds no text blocks")
	}
	return Found(doc, skipped)
}

// clipReference extracts the path id of the first clip on a block's text
// track.
func clipReference(entry any) (int64, error) {
	block, ok := entry.(scenegraph.Tree)
	if !ok {
		return 0, fmt.Errorf("block is %T, not a class", entry)
	}
	track, ok := block.Tree("TextTrack")
	if !ok {
		return 0, fmt.Errorf("block has no TextTrack")
	}
	clips, ok := track.List("ClipList")
	if !ok || len(clips) == 0 {
		return 0, fmt.Errorf("text track has no clips")
	}
	ref, ok := clips[0].(scenegraph.Tree)
	if !ok {
		return 0, fmt.Errorf("clip reference is %T, not a pointer", clips[0])
	}
	pathID, ok := ref.Int("m_PathID")
	if !ok {
		return 0, fmt.Errorf("clip reference has no m_PathID")
	}
	return pathID, nil
}

// speakerName resolves numeric speaker ids through names, keeping the stored
// value when the id is unknown.
func speakerName(raw string, names map[int]string) string {
	if raw == "" || !isDigits(raw) {
		return raw
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	if name := names[id]; name != "" {
		return name
	}
	return raw
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func clipChoices(clip scenegraph.Tree) []document.Choice {
	items, _ := clip.List("ChoiceDataList")
	choices := make([]document.Choice, 0, len(items))
	for _, item := range items {
		entry, ok := item.(scenegraph.Tree)
		if !ok {
			continue
		}
		choice := document.Choice{SourceText: entry.String("Text")}
		if next, ok := entry.Int("NextBlock"); ok {
			choice.NextBlock = document.IntPtr(int(next))
		}
		if flag, ok := entry.Int("DifferenceFlag"); ok {
			choice.FlowFlag = int(flag)
		}
		choices = append(choices, choice)
	}
	return choices
}

func clipSpans(clip scenegraph.Tree) []document.ColoredSpan {
	items, _ := clip.List("ColorTextInfoList")
	var spans []document.ColoredSpan
	for _, item := range items {
		entry, ok := item.(scenegraph.Tree)
		if !ok {
			continue
		}
		spans = append(spans, document.ColoredSpan{SourceText: entry.String("Text")})
	}
	return spans
}
