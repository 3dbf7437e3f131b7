package db

import "strings"

// tagEscaper escapes characters with special meaning inside TAG braces.
var tagEscaper = strings.NewReplacer(
	" ", "\\ ", ",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>",
	"{", "\\{", "}", "\\}", "[", "\\[", "]", "\\]", "\"", "\\\"",
	"'", "\\'", ":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^", "&", "\\&",
	"*", "\\*", "(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
	"=", "\\=", "~", "\\~", "|", "\\|", "/", "\\/",
)

// EscapeTag escapes a value for use inside an FT.SEARCH TAG group.
func EscapeTag(v string) string {
	return tagEscaper.Replace(v)
}
