package scenegraph

// commonStrings is the engine's shared type tree string table. Type tree
// nodes refer to it with offsets that have the high bit set; each offset is
// the byte position of the string within the NUL-separated concatenation of
// this list.
var commonStrings = []string{
	"AABB", "AnimationClip", "AnimationCurve", "AnimationState", "Array",
	"Base", "BitField", "bitset", "bool", "char", "ColorRGBA", "Component",
	"data", "deque", "double", "dynamic_array", "FastPropertyName", "first",
	"float", "Font", "GameObject", "Generic Mono", "GradientNEW", "GUID",
	"GUIStyle", "int", "list", "long long", "map", "Matrix4x4f", "MdFour",
	"MonoBehaviour", "MonoScript", "m_ByteSize", "m_Curve",
	"m_EditorClassIdentifier", "m_EditorHideFlags", "m_Enabled",
	"m_ExtensionPtr", "m_GameObject", "m_Index", "m_IsArray", "m_IsStatic",
	"m_MetaFlag", "m_Name", "m_ObjectHideFlags", "m_PrefabInternal",
	"m_PrefabParentObject", "m_Script", "m_StaticEditorFlags", "m_Type",
	"m_Version", "Object", "pair", "PPtr<Component>", "PPtr<GameObject>",
	"PPtr<Material>", "PPtr<MonoBehaviour>", "PPtr<MonoScript>",
	"PPtr<Object>", "PPtr<Prefab>", "PPtr<Sprite>", "PPtr<TextAsset>",
	"PPtr<Texture>", "PPtr<Texture2D>", "PPtr<Transform>", "Prefab",
	"Quaternionf", "Rectf", "RectInt", "RectOffset", "second", "set",
	"short", "size", "SInt16", "SInt32", "SInt64", "SInt8", "staticvector",
	"string", "TextAsset", "TextMesh", "Texture", "Texture2D", "Transform",
	"TypelessData", "UInt16", "UInt32", "UInt64", "UInt8", "unsigned int",
	"unsigned long long", "unsigned short", "vector", "Vector2f", "Vector3f",
	"Vector4f", "m_ScriptingClassIdentifier", "Gradient", "Type*",
	"int2_storage", "int3_storage", "BoundsInt", "m_CorrespondingSourceObject",
	"m_PrefabInstance", "m_PrefabAsset", "FileSize", "Hash128",
	"RenderingLayerMask",
}

var commonStringOffsets = buildCommonStringOffsets()

func buildCommonStringOffsets() map[uint32]string {
	offsets := make(map[uint32]string, len(commonStrings))
	var pos uint32
	for _, s := range commonStrings {
		offsets[pos] = s
		pos += uint32(len(s)) + 1
	}
	return offsets
}

// CommonStringOffset returns the table offset of s, if s is a shared string.
func CommonStringOffset(s string) (uint32, bool) {
	var pos uint32
	for _, candidate := range commonStrings {
		if candidate == s {
			return pos, true
		}
		pos += uint32(len(candidate)) + 1
	}
	return 0, false
}

// classNames maps class ids to type names for files stored without type
// trees.
var classNames = map[int32]string{
	1:   "GameObject",
	4:   "Transform",
	28:  "Texture2D",
	49:  "TextAsset",
	114: "MonoBehaviour",
	115: "MonoScript",
	142: "AssetBundle",
	213: "Sprite",
}
