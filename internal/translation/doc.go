// Package translation brings existing translation work into the workspace.
//
// ImportProject relocates documents from another checkout of the same format,
// MergeHachimi fills untranslated text from a Hachimi localized_data tree and
// FillDuplicates reuses translations across identical master texts in a
// dumped text_data dictionary. None of them overwrite text that is already
// translated, except ImportProject which replaces whole documents.
package translation
