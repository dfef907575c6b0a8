package extract

import (
	"context"
	"log/slog"
	"strings"

	"perapera/internal/document"
	"perapera/internal/scenegraph"
)

var childListFields = []string{"_objectParamList", "_planeParamList"}

type motion struct {
	index  int
	fields scenegraph.Tree
}

// walkUIAnimation walks the motion graph depth first from the declared root,
// or from every motion in list order when no root is set. Each id is visited
// at most once, so cycles terminate.
func walkUIAnimation(ctx context.Context, in Input, logger *slog.Logger) Result {
	root, _ := firstTree(in.Graph, "MonoBehaviour", logger, hasKey("_motionParameterGroup"))
	if root == nil {
		return NotApplicable("no MonoBehaviour carries a motion parameter group")
	}

	doc := &document.AssetDocument{Motions: []document.MotionTextUnit{}}
	if in.ContentHash != "" && in.Platform != "" {
		doc.BundleHashes = map[string]string{strings.ToLower(in.Platform): in.ContentHash}
	}

	group, _ := root.Tree("_motionParameterGroup")
	params, _ := group.List("_motionParameterList")
	if len(params) == 0 {
		return Found(doc, 0)
	}

	motions := make(map[int64]motion, len(params))
	var order []int64
	for i, item := range params {
		fields, ok := item.(scenegraph.Tree)
		if !ok {
			continue
		}
		id, _ := fields.Int("_id")
		if _, seen := motions[id]; !seen {
			order = append(order, id)
		}
		motions[id] = motion{index: i, fields: fields}
	}

	visited := make(map[int64]bool, len(motions))
	walk := func(start int64) error {
		stack := []int64{start}
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if id == 0 || visited[id] {
				continue
			}
			visited[id] = true
			m, ok := motions[id]
			if !ok {
				continue
			}
			doc.Motions = append(doc.Motions, motionTexts(m, len(doc.Motions))...)

			children := motionChildren(m.fields)
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		}
		return nil
	}

	if rootID, ok := root.Int("_rootMotionID"); ok && rootID != 0 {
		if err := walk(rootID); err != nil {
			return Failed(err)
		}
		return Found(doc, 0)
	}
	for _, id := range order {
		if err := walk(id); err != nil {
			return Failed(err)
		}
	}
	return Found(doc, 0)
}

func motionTexts(m motion, next int) []document.MotionTextUnit {
	items, _ := m.fields.List("_textParamList")
	var units []document.MotionTextUnit
	for i, item := range items {
		param, ok := item.(scenegraph.Tree)
		if !ok {
			continue
		}
		text := param.String("_text")
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, document.MotionTextUnit{
			BlockIndex:  next + len(units),
			MotionIndex: m.index,
			TextIndex:   i,
			MotionName:  m.fields.String("_name"),
			ObjectName:  param.String("_objectName"),
			SourceText:  text,
		})
	}
	return units
}

func motionChildren(fields scenegraph.Tree) []int64 {
	var ids []int64
	for _, name := range childListFields {
		items, _ := fields.List(name)
		for _, item := range items {
			param, ok := item.(scenegraph.Tree)
			if !ok {
				continue
			}
			if child, ok := param.Int("_childMotionID"); ok && child != 0 {
				ids = append(ids, child)
			}
		}
	}
	return ids
}
