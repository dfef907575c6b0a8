package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Asset type tags understood by the extraction pipeline.
const (
	TypeStory       = "story"
	TypeHome        = "home"
	TypeRace        = "race"
	TypeLyrics      = "lyrics"
	TypePreview     = "preview"
	TypeUIAnimation = "uianimation"
	TypeGeneric     = "generic"
)

// Types lists every supported asset type in display order.
var Types = []string{TypeStory, TypeHome, TypeRace, TypeLyrics, TypePreview, TypeUIAnimation, TypeGeneric}

// AssetRecord is one row of the asset index.
type AssetRecord struct {
	Name        string
	ContentHash string
	CipherKey   int64
}

// Encrypted reports whether the stored payload carries the bundle cipher.
func (r AssetRecord) Encrypted() bool { return r.CipherKey != 0 }

// AssetDocument is the top-level persisted unit for one asset.
type AssetDocument struct {
	AssetName       string
	Type            string
	GroupName       string
	Title           string
	TranslatedTitle string
	BundleHashes    map[string]string
	Blocks          []TextBlock
	Motions         []MotionTextUnit
}

// IsMotion reports whether the document holds motion text units instead of
// text blocks.
func (d *AssetDocument) IsMotion() bool { return d.Type == TypeUIAnimation }

// Len returns the number of extracted units.
func (d *AssetDocument) Len() int {
	if d.IsMotion() {
		return len(d.Motions)
	}
	return len(d.Blocks)
}

// TextBlock is the canonical extracted unit.
type TextBlock struct {
	BlockIndex            int
	SpeakerName           string
	TranslatedSpeakerName string
	SourceText            string
	TranslatedText        string
	Choices               []Choice
	ColoredSpans          []ColoredSpan
	VoiceRef              *VoiceRef
	NextBlock             *int
	FlowFlag              int
	PathID                int64
	Time                  string
}

// Choice is one selectable branch attached to a block.
type Choice struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
	NextBlock      *int   `json:"next_block,omitempty"`
	FlowFlag       int    `json:"flow_flag,omitempty"`
}

// ColoredSpan is a highlighted fragment of a block's text.
type ColoredSpan struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

// VoiceRef points into an external audio cue sheet. Cue is the effective cue
// after renumbering offsets; SourceCue is the value stored in the asset.
type VoiceRef struct {
	Sheet     string `json:"sheet,omitempty"`
	Cue       *int   `json:"cue,omitempty"`
	SourceCue *int   `json:"source_cue,omitempty"`
}

// MotionTextUnit is one text entry found while walking a UI-animation motion
// graph.
type MotionTextUnit struct {
	BlockIndex     int    `json:"block_index"`
	MotionIndex    int    `json:"motion_index"`
	TextIndex      int    `json:"text_index"`
	MotionName     string `json:"motion_name,omitempty"`
	ObjectName     string `json:"object_name,omitempty"`
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
}

// marshalPlain encodes v without escaping HTML characters.
func marshalPlain(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

type documentJSON struct {
	AssetName       string            `json:"asset_name"`
	Type            string            `json:"type"`
	GroupName       string            `json:"group_name,omitempty"`
	Title           *string           `json:"title,omitempty"`
	TranslatedTitle *string           `json:"translated_title,omitempty"`
	BundleHashes    map[string]string `json:"bundle_hashes,omitempty"`
	TextBlocks      json.RawMessage   `json:"text_blocks"`
}

// MarshalJSON writes the persisted document schema.
func (d AssetDocument) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		AssetName:    d.AssetName,
		Type:         d.Type,
		GroupName:    d.GroupName,
		BundleHashes: d.BundleHashes,
	}
	if d.Title != "" {
		title, translated := d.Title, d.TranslatedTitle
		out.Title = &title
		out.TranslatedTitle = &translated
	}
	var (
		blocks []byte
		err    error
	)
	if d.IsMotion() {
		motions := d.Motions
		if motions == nil {
			motions = []MotionTextUnit{}
		}
		blocks, err = marshalPlain(motions)
	} else {
		list := d.Blocks
		if list == nil {
			list = []TextBlock{}
		}
		blocks, err = marshalPlain(list)
	}
	if err != nil {
		return nil, err
	}
	out.TextBlocks = blocks
	return marshalPlain(out)
}

// UnmarshalJSON reads the current schema and documents written with legacy
// key names.
func (d *AssetDocument) UnmarshalJSON(data []byte) error {
	var in struct {
		documentJSON
		LegacyType string `json:"asset_type"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = AssetDocument{
		AssetName:    in.AssetName,
		Type:         in.Type,
		GroupName:    in.GroupName,
		BundleHashes: in.BundleHashes,
	}
	if d.Type == "" {
		d.Type = in.LegacyType
	}
	if in.Title != nil {
		d.Title = *in.Title
	}
	if in.TranslatedTitle != nil {
		d.TranslatedTitle = *in.TranslatedTitle
	}
	if len(in.TextBlocks) == 0 || string(in.TextBlocks) == "null" {
		return nil
	}
	if d.IsMotion() {
		if err := json.Unmarshal(in.TextBlocks, &d.Motions); err != nil {
			return fmt.Errorf("decode motion units: %w", err)
		}
		return nil
	}
	if err := json.Unmarshal(in.TextBlocks, &d.Blocks); err != nil {
		return fmt.Errorf("decode text blocks: %w", err)
	}
	return nil
}

type textBlockJSON struct {
	BlockIndex            int           `json:"block_index"`
	SpeakerName           *string       `json:"speaker_name,omitempty"`
	TranslatedSpeakerName *string       `json:"translated_speaker_name,omitempty"`
	SourceText            string        `json:"source_text"`
	TranslatedText        string        `json:"translated_text"`
	Choices               []Choice      `json:"choices,omitempty"`
	ColoredSpans          []ColoredSpan `json:"colored_spans,omitempty"`
	VoiceRef              *VoiceRef     `json:"voice_ref,omitempty"`
	NextBlock             *int          `json:"next_block,omitempty"`
	FlowFlag              int           `json:"flow_flag,omitempty"`
	PathID                int64         `json:"path_id,omitempty"`
	Time                  string        `json:"time,omitempty"`
}

// MarshalJSON writes a block. A block with a speaker always carries
// translated_speaker_name, empty when untranslated.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	out := textBlockJSON{
		BlockIndex:     b.BlockIndex,
		SourceText:     b.SourceText,
		TranslatedText: b.TranslatedText,
		Choices:        b.Choices,
		ColoredSpans:   b.ColoredSpans,
		VoiceRef:       b.VoiceRef,
		NextBlock:      b.NextBlock,
		FlowFlag:       b.FlowFlag,
		PathID:         b.PathID,
		Time:           b.Time,
	}
	if b.SpeakerName != "" || b.TranslatedSpeakerName != "" {
		speaker, translated := b.SpeakerName, b.TranslatedSpeakerName
		out.SpeakerName = &speaker
		out.TranslatedSpeakerName = &translated
	}
	return marshalPlain(out)
}

type legacyBlockJSON struct {
	textBlockJSON
	JPText         *string       `json:"jpText"`
	ENText         *string       `json:"enText"`
	JPName         *string       `json:"jpName"`
	ENName         *string       `json:"enName"`
	ColoredText    []ColoredSpan `json:"coloredText"`
	LegacyNext     *int          `json:"nextBlock"`
	DifferenceFlag *int          `json:"differenceFlag"`
	VoiceIdx       *int          `json:"voiceIdx"`
	CueSheet       *string       `json:"cueSheet"`
}

// UnmarshalJSON accepts both the current keys and the legacy ones.
func (b *TextBlock) UnmarshalJSON(data []byte) error {
	var in legacyBlockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*b = TextBlock{
		BlockIndex:     in.BlockIndex,
		SourceText:     in.SourceText,
		TranslatedText: in.TranslatedText,
		Choices:        in.Choices,
		ColoredSpans:   in.ColoredSpans,
		VoiceRef:       in.VoiceRef,
		NextBlock:      in.NextBlock,
		FlowFlag:       in.FlowFlag,
		PathID:         in.PathID,
		Time:           in.Time,
	}
	if in.SpeakerName != nil {
		b.SpeakerName = *in.SpeakerName
	}
	if in.TranslatedSpeakerName != nil {
		b.TranslatedSpeakerName = *in.TranslatedSpeakerName
	}
	legacyString(&b.SourceText, in.JPText)
	legacyString(&b.TranslatedText, in.ENText)
	legacyString(&b.SpeakerName, in.JPName)
	legacyString(&b.TranslatedSpeakerName, in.ENName)
	if b.ColoredSpans == nil && in.ColoredText != nil {
		b.ColoredSpans = in.ColoredText
	}
	if b.NextBlock == nil && in.LegacyNext != nil {
		b.NextBlock = in.LegacyNext
	}
	if b.FlowFlag == 0 && in.DifferenceFlag != nil {
		b.FlowFlag = *in.DifferenceFlag
	}
	if b.VoiceRef == nil && (in.VoiceIdx != nil || in.CueSheet != nil) {
		ref := &VoiceRef{Cue: in.VoiceIdx, SourceCue: in.VoiceIdx}
		if in.CueSheet != nil {
			ref.Sheet = *in.CueSheet
		}
		b.VoiceRef = ref
	}
	return nil
}

// UnmarshalJSON accepts both the current keys and the legacy ones.
func (c *Choice) UnmarshalJSON(data []byte) error {
	type plain Choice
	var in struct {
		plain
		JPText         *string `json:"jpText"`
		ENText         *string `json:"enText"`
		LegacyNext     *int    `json:"nextBlock"`
		DifferenceFlag *int    `json:"differenceFlag"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Choice(in.plain)
	legacyString(&c.SourceText, in.JPText)
	legacyString(&c.TranslatedText, in.ENText)
	if c.NextBlock == nil {
		c.NextBlock = in.LegacyNext
	}
	if c.FlowFlag == 0 && in.DifferenceFlag != nil {
		c.FlowFlag = *in.DifferenceFlag
	}
	return nil
}

// UnmarshalJSON accepts both the current keys and the legacy ones.
func (s *ColoredSpan) UnmarshalJSON(data []byte) error {
	type plain ColoredSpan
	var in struct {
		plain
		JPText *string `json:"jpText"`
		ENText *string `json:"enText"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = ColoredSpan(in.plain)
	legacyString(&s.SourceText, in.JPText)
	legacyString(&s.TranslatedText, in.ENText)
	return nil
}

// UnmarshalJSON accepts both the current keys and the legacy ones.
func (m *MotionTextUnit) UnmarshalJSON(data []byte) error {
	type plain MotionTextUnit
	var in struct {
		plain
		JPText *string `json:"jpText"`
		ENText *string `json:"enText"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = MotionTextUnit(in.plain)
	legacyString(&m.SourceText, in.JPText)
	legacyString(&m.TranslatedText, in.ENText)
	return nil
}

// legacyString fills dst from a legacy key only when the current key left it empty.
func legacyString(dst *string, legacy *string) {
	if *dst == "" && legacy != nil {
		*dst = *legacy
	}
}
