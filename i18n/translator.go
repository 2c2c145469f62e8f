package i18n

import "strings"

// Translator retrieves localized messages for error codes.
// data provides optional values to embed in the message (for example,
// "path", "expected" or "got").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	var tmpl string
	switch t.lang {
	case "ja":
		switch code {
		case "required":
			tmpl = "属性 '{path}' は必須ですが値がありません"
		case "incompatible_type":
			tmpl = "属性 '{path}' は '{expected}' を期待していますが互換性のない '{got}' が与えられました"
		case "in_option":
			tmpl = "属性 '{path}' は '{allowed}' のいずれかである必要がありますが '{got}' が与えられました"
		case "no_such_attribute":
			tmpl = "このスコープに属性 '{key}' は定義されていません (定義済み: {keys})"
		case "arity":
			tmpl = "属性 '{key}' の引数が不正です: {detail}"
		case "assignment_target":
			tmpl = "属性 '{key}' は '{target}' に代入できません"
		case "construction":
			tmpl = "属性 '{key}' には明示的な値が必要です: {detail}"
		case "declaration":
			tmpl = "属性 '{key}' の宣言が不正です: {detail}"
		}
	default: // "en"
		switch code {
		case "required":
			tmpl = "The attribute '{path}' is required but no value was given."
		case "incompatible_type":
			tmpl = "The attribute '{path}' expects '{expected}' but incompatible '{got}' was given."
		case "in_option":
			tmpl = "The attribute '{path}' must be in '{allowed}' but '{got}' was given."
		case "no_such_attribute":
			tmpl = "There is no schema value or object '{key}' defined in this scope which includes: {keys}."
		case "arity":
			tmpl = "The attribute '{key}' {detail}."
		case "assignment_target":
			tmpl = "The attribute '{key}' cannot be assigned because '{target}' does not define it."
		case "construction":
			tmpl = "An explicit value for '{key}' is required because {detail}."
		case "declaration":
			tmpl = "The attribute '{key}' is declared incorrectly: {detail}."
		}
	}
	if tmpl == "" {
		return code
	}
	return expand(tmpl, data)
}

func expand(tmpl string, data map[string]string) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
